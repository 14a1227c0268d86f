package access

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ClassName identifies a category of protectable resources.
type ClassName string

const (
	ClassQueue   ClassName = "QUEUE"
	ClassCommand ClassName = "COMMAND"
	ClassServer  ClassName = "SERVER"
)

// GroupResolver returns the groups a user belongs to, in membership order.
type GroupResolver interface {
	GroupsOf(userID string) []string
}

// NoGroups is a GroupResolver for deployments without groups.
type NoGroups struct{}

func (NoGroups) GroupsOf(string) []string { return nil }

// ResourceClass owns one access list and the set of levels it supports.
type ResourceClass struct {
	name    ClassName
	enabled Level
	groups  GroupResolver

	mu   sync.Mutex // serializes writers
	list atomic.Pointer[List]
}

// NewResourceClass creates a class with an empty list whose default is None.
func NewResourceClass(name ClassName, enabled Level, groups GroupResolver) *ResourceClass {
	if groups == nil {
		groups = NoGroups{}
	}
	rc := &ResourceClass{name: name, enabled: enabled, groups: groups}
	rc.list.Store(NewList(None))
	return rc
}

// Name returns the class name.
func (rc *ResourceClass) Name() ClassName { return rc.name }

// Enabled returns the levels this class supports.
func (rc *ResourceClass) Enabled() Level { return rc.enabled }

// List returns the current snapshot.
func (rc *ResourceClass) List() *List { return rc.list.Load() }

// LevelFor resolves the level userID holds on resource.
func (rc *ResourceClass) LevelFor(resource, userID string) Level {
	return rc.list.Load().Resolve(resource, userID, rc.groups.GroupsOf(userID))
}

// Check reports whether userID holds every bit of required on resource. A
// required level outside the class's enabled set is a configuration error,
// not a denial.
func (rc *ResourceClass) Check(resource, userID string, required Level) (bool, error) {
	if err := rc.validate(required); err != nil {
		return false, err
	}
	return rc.LevelFor(resource, userID).Contains(required), nil
}

// Replace validates list and swaps it in.
func (rc *ResourceClass) Replace(list *List) error {
	if err := rc.validateList(list); err != nil {
		return err
	}
	rc.mu.Lock()
	rc.list.Store(list)
	rc.mu.Unlock()
	return nil
}

// AddEntry appends e to a copy of the current list and swaps it in.
func (rc *ResourceClass) AddEntry(e *Entry) error {
	if err := rc.validate(e.granted()); err != nil {
		return fmt.Errorf("entry %q: %w", e.Pattern(), err)
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.list.Store(rc.list.Load().with(e))
	return nil
}

func (rc *ResourceClass) validate(lvl Level) error {
	if extra := lvl.Without(rc.enabled); extra != None {
		return fmt.Errorf("%w: class %s supports %s, got %s", ErrLevelNotEnabled, rc.name, rc.enabled, extra)
	}
	return nil
}

func (rc *ResourceClass) validateList(list *List) error {
	if err := rc.validate(list.Default()); err != nil {
		return fmt.Errorf("default: %w", err)
	}
	for _, e := range list.entries {
		if err := rc.validate(e.granted()); err != nil {
			return fmt.Errorf("entry %q: %w", e.Pattern(), err)
		}
	}
	return nil
}
