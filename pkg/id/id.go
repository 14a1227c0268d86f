package id

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sync"
	"time"
)

// ID is a 128-bit, lexicographically sortable identifier encoded as 16 bytes
// big-endian: [8 bytes ms_timestamp][8 bytes sequence].
type ID [16]byte

// String returns the lowercase hex form.
func (i ID) String() string { return hex.EncodeToString(i[:]) }

// IsZero reports whether the ID was never assigned.
func (i ID) IsZero() bool { return i == ID{} }

// Time returns the millisecond timestamp embedded in the ID.
func (i ID) Time() time.Time {
	return time.UnixMilli(int64(binary.BigEndian.Uint64(i[0:8])))
}

// MarshalText encodes the ID as lowercase hex so it travels as a string in
// CBOR, JSON and YAML alike.
func (i ID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

// UnmarshalText accepts the hex form produced by MarshalText. An empty input
// yields the zero ID.
func (i *ID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*i = ID{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Parse decodes a 32-character hex string.
func Parse(s string) (ID, error) {
	var out ID
	if len(s) != 32 {
		return out, fmt.Errorf("id: want 32 hex chars, got %d", len(s))
	}
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return out, fmt.Errorf("id: %w", err)
	}
	return out, nil
}

// Compare orders ids chronologically.
func (i ID) Compare(other ID) int { return bytes.Compare(i[:], other[:]) }

// Generator hands out strictly increasing ids within one process.
type Generator struct {
	mu    sync.Mutex
	last  ID
	clock func() int64
}

// NewGenerator returns a generator driven by the wall clock.
func NewGenerator() *Generator {
	return NewGeneratorWithClock(func() int64 { return time.Now().UnixMilli() })
}

// NewGeneratorWithClock returns a generator that reads Unix milliseconds
// from clock. clock must be safe for concurrent use.
func NewGeneratorWithClock(clock func() int64) *Generator {
	return &Generator{clock: clock}
}

// Next returns an id greater than every id this generator returned before.
// A clock that moves backwards keeps the last millisecond; an exhausted
// sequence waits for the clock to advance.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	lastMs := int64(binary.BigEndian.Uint64(g.last[0:8]))
	seq := binary.BigEndian.Uint64(g.last[8:16])
	ms := max(g.clock(), lastMs)
	switch {
	case g.last.IsZero() || ms > lastMs:
		seq = 0
	case seq < math.MaxUint64:
		seq++
	default:
		for ms <= lastMs {
			time.Sleep(time.Millisecond / 8)
			ms = g.clock()
		}
		seq = 0
	}
	binary.BigEndian.PutUint64(g.last[0:8], uint64(ms))
	binary.BigEndian.PutUint64(g.last[8:16], seq)
	return g.last
}
