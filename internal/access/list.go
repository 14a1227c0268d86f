package access

// List is an ordered, immutable set of entries plus the class default.
type List struct {
	entries []*Entry
	def     Level
}

// NewList builds a list. Evaluation follows the order of entries.
func NewList(def Level, entries ...*Entry) *List {
	return &List{entries: append([]*Entry(nil), entries...), def: def}
}

// Default returns the level applied when no entry has an opinion.
func (l *List) Default() Level { return l.def }

// Len returns the number of entries.
func (l *List) Len() int { return len(l.entries) }

// Entries returns a copy of the entries in evaluation order.
func (l *List) Entries() []*Entry { return append([]*Entry(nil), l.entries...) }

// Matching returns entries whose pattern matches resource, in list order.
func (l *List) Matching(resource string) []*Entry {
	var out []*Entry
	for _, e := range l.entries {
		if e.Matches(resource) {
			out = append(out, e)
		}
	}
	return out
}

// Resolve walks matching entries in order; the first one with an opinion for
// the user wins. Falls back to the default.
func (l *List) Resolve(resource, userID string, groups []string) Level {
	for _, e := range l.entries {
		if !e.Matches(resource) {
			continue
		}
		if lvl, ok := e.LevelFor(userID, groups); ok {
			return lvl
		}
	}
	return l.def
}

// with returns a copy of l with e appended.
func (l *List) with(e *Entry) *List {
	entries := make([]*Entry, 0, len(l.entries)+1)
	entries = append(entries, l.entries...)
	entries = append(entries, e)
	return &List{entries: entries, def: l.def}
}
