package gate

import (
	"strings"

	"github.com/pkg/errors"
)

// Policy decides what Set does when a value is already pending.
type Policy int

const (
	// Overwrite replaces the pending value. The last write before the read wins.
	Overwrite Policy = iota
	// Reject refuses a second write with ErrAlreadySet.
	Reject
)

func (p Policy) String() string {
	switch p {
	case Overwrite:
		return "overwrite"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// ParsePolicy parses "overwrite" or "reject", case-insensitively. The empty string is Overwrite.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "overwrite":
		return Overwrite, nil
	case "reject":
		return Reject, nil
	}
	return Overwrite, errors.Errorf("unknown gate policy %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	if p != Overwrite && p != Reject {
		return nil, errors.Errorf("unknown gate policy %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
