package queue

import (
	"fmt"
	"strings"
)

// Disposition says whether a queue outlives its creator and the process.
type Disposition uint8

const (
	Temporary Disposition = iota + 1
	Permanent
)

func (d Disposition) String() string {
	switch d {
	case Temporary:
		return "TEMPORARY"
	case Permanent:
		return "PERMANENT"
	}
	return fmt.Sprintf("Disposition(%d)", uint8(d))
}

// ParseDisposition accepts TEMPORARY or PERMANENT in any case. Empty means
// Permanent.
func ParseDisposition(s string) (Disposition, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "PERMANENT":
		return Permanent, nil
	case "TEMPORARY":
		return Temporary, nil
	}
	return 0, fmt.Errorf("queue: unknown disposition %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Disposition) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Disposition) UnmarshalText(b []byte) error {
	v, err := ParseDisposition(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// State is the backpressure state of a queue.
type State uint8

const (
	Active State = iota
	Suspended
)

func (s State) String() string {
	if s == Suspended {
		return "SUSPENDED"
	}
	return "ACTIVE"
}

// StateChange reports an edge crossed by a put or get.
type StateChange uint8

const (
	NoChange StateChange = iota
	BecameSuspended
	BecameResumed
)

func (c StateChange) String() string {
	switch c {
	case BecameSuspended:
		return "suspended"
	case BecameResumed:
		return "resumed"
	}
	return "none"
}

// Definition is the administrative description of a queue. A Threshold of
// zero or less means unlimited.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Threshold   int         `json:"threshold,omitempty"`
	Disposition Disposition `json:"disposition"`
	// Owner is the session that defined a temporary queue.
	Owner string `json:"-"`
}

// Unlimited reports whether the queue never suspends.
func (d Definition) Unlimited() bool { return d.Threshold <= 0 }

// Info is a point-in-time view of a queue.
type Info struct {
	Definition
	Size  int
	State State
}

// NormalizeName upper-cases and trims a queue name.
func NormalizeName(name string) (string, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(n, " \t\r\n/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return n, nil
}
