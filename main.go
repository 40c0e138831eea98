package main

import "github.com/demos-sh/demos/cmd/root"

func main() {
	root.Execute()
}
