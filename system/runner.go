// Package system runs host commands (useradd, service reloads, chown).
package system

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// Runner executes a host command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// CommandError carries the output of a failed command.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, e.Output)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	command := strings.Join(append([]string{name}, args...), " ")
	slog.Debug("Executing command", "layer", "system", "command", command)

	if err := cmd.Run(); err != nil {
		output := strings.TrimSpace(out.String())
		slog.Error("Command failed",
			"layer", "system",
			"command", command,
			"output", output,
			"error", err)
		return output, &CommandError{Command: command, Output: output, Err: err}
	}
	return out.String(), nil
}

// RunLine splits a configured command line such as "service nginx reload" on
// whitespace and runs it.
func RunLine(ctx context.Context, r Runner, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty command")
	}
	return r.Run(ctx, fields[0], fields[1:]...)
}

// RecordingRunner records commands instead of running them. Failures can be
// injected per command prefix.
type RecordingRunner struct {
	mu       sync.Mutex
	commands []string
	failures map[string]error
}

func NewRecordingRunner() *RecordingRunner {
	return &RecordingRunner{failures: make(map[string]error)}
}

func (r *RecordingRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	command := strings.Join(append([]string{name}, args...), " ")

	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = append(r.commands, command)
	for prefix, err := range r.failures {
		if strings.HasPrefix(command, prefix) {
			return "", &CommandError{Command: command, Err: err}
		}
	}
	return "", nil
}

// FailOn makes every command starting with prefix fail with err. A nil err clears it.
func (r *RecordingRunner) FailOn(prefix string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil {
		delete(r.failures, prefix)
		return
	}
	r.failures[prefix] = err
}

// Commands returns a copy of the commands run so far.
func (r *RecordingRunner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.commands...)
}

// Count returns how many recorded commands start with prefix.
func (r *RecordingRunner) Count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.commands {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Reset forgets recorded commands.
func (r *RecordingRunner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = nil
}
