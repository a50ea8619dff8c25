package conduit

import (
	"fmt"
	"strings"
)

// Side is the end of a deployment a Service runs on. Servers accept
// sessions, clients dial them.
type Side uint8

const (
	SideServer Side = iota
	SideClient
)

// String ...
func (s Side) String() string {
	switch s {
	case SideServer:
		return "server"
	case SideClient:
		return "client"
	default:
		return fmt.Sprintf("Side(%d)", uint8(s))
	}
}

// MarshalText ...
func (s Side) MarshalText() ([]byte, error) {
	switch s {
	case SideServer, SideClient:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("conduit: invalid side %d", uint8(s))
	}
}

// UnmarshalText ...
func (s *Side) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "server":
		*s = SideServer
	case "client":
		*s = SideClient
	default:
		return fmt.Errorf("conduit: invalid side %q", text)
	}
	return nil
}
