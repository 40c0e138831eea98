package domain

import "fmt"

// ConnectionState represents which upstream a project's vhost currently serves
type ConnectionState int

const (
	ConnectionStateUnknown ConnectionState = iota
	ConnectionStatePlaceholder
	ConnectionStateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStatePlaceholder:
		return "placeholder"
	case ConnectionStateConnected:
		return "connected"
	case ConnectionStateUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

func ParseConnectionState(s string) (ConnectionState, error) {
	switch s {
	case "placeholder":
		return ConnectionStatePlaceholder, nil
	case "connected":
		return ConnectionStateConnected, nil
	case "unknown":
		return ConnectionStateUnknown, nil
	default:
		return ConnectionStateUnknown, fmt.Errorf("invalid connection state: %q", s)
	}
}
