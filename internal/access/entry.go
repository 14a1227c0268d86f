package access

import (
	"fmt"
	"regexp"
)

// IdentityKind distinguishes user ids from group ids inside an entry.
type IdentityKind uint8

const (
	KindUser IdentityKind = iota + 1
	KindGroup
)

// Identity names a user or a group.
type Identity struct {
	Kind IdentityKind
	ID   string
}

// User returns the identity of a user id.
func User(id string) Identity { return Identity{Kind: KindUser, ID: id} }

// Group returns the identity of a group id.
func Group(id string) Identity { return Identity{Kind: KindGroup, ID: id} }

func (i Identity) String() string {
	if i.Kind == KindGroup {
		return "group:" + i.ID
	}
	return "user:" + i.ID
}

// Entry binds a resource-name pattern to per-identity levels. Entries are
// immutable once built.
type Entry struct {
	pattern string
	re      *regexp.Regexp
	grants  map[Identity]Level
}

// NewEntry compiles pattern (a regular expression matched against the whole
// resource name, case-insensitively) and copies grants.
func NewEntry(pattern string, grants map[Identity]Level) (*Entry, error) {
	re, err := regexp.Compile("(?i)^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrBadPattern, pattern, err)
	}
	g := make(map[Identity]Level, len(grants))
	for id, lvl := range grants {
		g[id] = lvl
	}
	return &Entry{pattern: pattern, re: re, grants: g}, nil
}

// Pattern returns the source pattern.
func (e *Entry) Pattern() string { return e.pattern }

// Matches reports whether the whole resource name matches the pattern.
func (e *Entry) Matches(resource string) bool { return e.re.MatchString(resource) }

// LevelFor returns this entry's opinion about userID: the user's own grant if
// present, else the grant of the first listed group that has one. ok is false
// when the entry has no opinion.
func (e *Entry) LevelFor(userID string, groups []string) (lvl Level, ok bool) {
	if lvl, ok = e.grants[User(userID)]; ok {
		return lvl, true
	}
	for _, g := range groups {
		if lvl, ok = e.grants[Group(g)]; ok {
			return lvl, true
		}
	}
	return None, false
}

// granted returns the union of all levels this entry hands out.
func (e *Entry) granted() Level {
	var all Level
	for _, lvl := range e.grants {
		all |= lvl
	}
	return all
}
