package shutdown

import (
	"fmt"
	"os"
	"strings"
	"syscall"
)

// Mode is a graceful shutdown mode.
type Mode int

const (
	// ModeNone requests nothing.
	ModeNone Mode = iota
	// ModeTerminate stops production; queued items are still processed.
	ModeTerminate
	// ModeInterrupt stops production and drains queued items to the dead-letter sink.
	ModeInterrupt
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeTerminate:
		return "terminate"
	case ModeInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// ParseMode accepts the mode names and their signal aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ModeNone, nil
	case "terminate", "term", "sigterm", "kill":
		return ModeTerminate, nil
	case "interrupt", "int", "sigint", "ctrl-c":
		return ModeInterrupt, nil
	default:
		return ModeNone, fmt.Errorf("unknown shutdown mode: %s", s)
	}
}

// ModeForSignal maps SIGTERM and SIGINT to their modes.
func ModeForSignal(sig os.Signal) Mode {
	switch sig {
	case syscall.SIGTERM:
		return ModeTerminate
	case os.Interrupt:
		return ModeInterrupt
	default:
		return ModeNone
	}
}

// MarshalText encodes m by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts anything ParseMode does.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
