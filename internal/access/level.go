package access

import (
	"fmt"
	"strings"
)

// Level is a set of independent permission bits. The zero value is None,
// which is a real answer ("no access"), not an unknown.
type Level uint8

const (
	None    Level = 0
	Read    Level = 1 << 0
	Write   Level = 1 << 1
	Alter   Level = 1 << 2
	Execute Level = 1 << 3

	allLevels = Read | Write | Alter | Execute
)

var levelNames = []struct {
	bit  Level
	name string
}{
	{Read, "READ"},
	{Write, "WRITE"},
	{Alter, "ALTER"},
	{Execute, "EXECUTE"},
}

// Contains reports whether every bit of required is present in l.
func (l Level) Contains(required Level) bool { return l&required == required }

// Union returns the bits present in either level.
func (l Level) Union(other Level) Level { return l | other }

// Intersect returns the bits present in both levels.
func (l Level) Intersect(other Level) Level { return l & other }

// Without returns l with the bits of other cleared.
func (l Level) Without(other Level) Level { return l &^ other }

// String renders "NONE" or the set bits joined by "|", e.g. "READ|WRITE".
func (l Level) String() string {
	if l == None {
		return "NONE"
	}
	parts := make([]string, 0, 4)
	for _, n := range levelNames {
		if l&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := l &^ allLevels; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%02x", uint8(rest)))
	}
	return strings.Join(parts, "|")
}

// MarshalText renders the level the same way as String.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText parses the forms accepted by ParseLevel.
func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel parses "NONE", a single name, or names joined by "|", "," or
// whitespace. Names are case-insensitive.
func ParseLevel(s string) (Level, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' ' || r == '\t'
	})
	var out Level
	for _, f := range fields {
		name := strings.ToUpper(f)
		if name == "NONE" {
			continue
		}
		found := false
		for _, n := range levelNames {
			if n.name == name {
				out |= n.bit
				found = true
				break
			}
		}
		if !found {
			return None, fmt.Errorf("%w: %q", ErrUnknownLevel, f)
		}
	}
	return out, nil
}

// ParseLevels folds a list of level expressions into one Level.
func ParseLevels(names []string) (Level, error) {
	var out Level
	for _, n := range names {
		l, err := ParseLevel(n)
		if err != nil {
			return None, err
		}
		out |= l
	}
	return out, nil
}
