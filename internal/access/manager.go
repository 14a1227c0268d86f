package access

import (
	"fmt"
	"sort"
)

// Decision is the outcome of a permission check.
type Decision int

const (
	Denied Decision = iota
	Granted
)

func (d Decision) String() string {
	if d == Granted {
		return "granted"
	}
	return "denied"
}

// EntrySpec is the declarative form of an Entry.
type EntrySpec struct {
	Pattern string
	Users   map[string]Level
	Groups  map[string]Level
}

// ListSpec is the declarative form of a List.
type ListSpec struct {
	Default Level
	Entries []EntrySpec
}

// Build compiles the spec.
func (s ListSpec) Build() (*List, error) {
	entries := make([]*Entry, 0, len(s.Entries))
	for _, es := range s.Entries {
		grants := make(map[Identity]Level, len(es.Users)+len(es.Groups))
		for id, lvl := range es.Users {
			grants[User(id)] = lvl
		}
		for id, lvl := range es.Groups {
			grants[Group(id)] = lvl
		}
		e, err := NewEntry(es.Pattern, grants)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return NewList(s.Default, entries...), nil
}

// Manager holds the fixed set of resource classes for one process.
type Manager struct {
	classes map[ClassName]*ResourceClass
}

// NewManager creates the QUEUE, COMMAND and SERVER classes with empty lists.
func NewManager(groups GroupResolver) *Manager {
	return &Manager{classes: map[ClassName]*ResourceClass{
		ClassQueue:   NewResourceClass(ClassQueue, Read|Write|Alter, groups),
		ClassCommand: NewResourceClass(ClassCommand, Execute, groups),
		ClassServer:  NewResourceClass(ClassServer, Read|Alter, groups),
	}}
}

// Class returns the named class.
func (m *Manager) Class(name ClassName) (*ResourceClass, error) {
	rc, ok := m.classes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, name)
	}
	return rc, nil
}

// Classes returns class names in sorted order.
func (m *Manager) Classes() []ClassName {
	out := make([]ClassName, 0, len(m.classes))
	for n := range m.classes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Apply builds and validates every list first, then swaps them in. Classes
// absent from specs are reset to an empty list that grants nothing. Nothing
// is replaced when any spec is invalid.
func (m *Manager) Apply(specs map[ClassName]ListSpec) error {
	built := make(map[*ResourceClass]*List, len(m.classes))
	for _, rc := range m.classes {
		built[rc] = NewList(None)
	}
	for name, spec := range specs {
		rc, err := m.Class(name)
		if err != nil {
			return err
		}
		list, err := spec.Build()
		if err != nil {
			return fmt.Errorf("class %s: %w", name, err)
		}
		if err := rc.validateList(list); err != nil {
			return fmt.Errorf("class %s: %w", name, err)
		}
		built[rc] = list
	}
	for rc, list := range built {
		if err := rc.Replace(list); err != nil {
			return err
		}
	}
	return nil
}

// LevelFor resolves userID's level on resource within class.
func (m *Manager) LevelFor(class ClassName, resource, userID string) (Level, error) {
	rc, err := m.Class(class)
	if err != nil {
		return None, err
	}
	return rc.LevelFor(resource, userID), nil
}

// CheckAccess grants iff required is a subset of the resolved level. Errors
// are configuration faults (unknown class, level not enabled), never denials.
func (m *Manager) CheckAccess(class ClassName, resource, userID string, required Level) (Decision, error) {
	rc, err := m.Class(class)
	if err != nil {
		return Denied, err
	}
	ok, err := rc.Check(resource, userID, required)
	if err != nil {
		return Denied, err
	}
	if ok {
		return Granted, nil
	}
	return Denied, nil
}
