package message

import "fmt"

// Kind is the body variant of a message. It doubles as the message type id.
type Kind uint8

const (
	KindEmpty Kind = iota + 1
	KindText
	KindBytes
	KindObject
	KindMap
	KindStream
)

var kindNames = map[Kind]string{
	KindEmpty:  "empty",
	KindText:   "text",
	KindBytes:  "bytes",
	KindObject: "object",
	KindMap:    "map",
	KindStream: "stream",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind resolves a kind name as printed by String.
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: body kind %q", ErrInvalid, s)
}

// Body is a message payload variant.
type Body interface {
	Kind() Kind
}

// TextBody carries a string.
type TextBody struct {
	Text string `cbor:"t"`
}

func (*TextBody) Kind() Kind { return KindText }

// BytesBody carries raw bytes.
type BytesBody struct {
	Data []byte `cbor:"d"`
}

func (*BytesBody) Kind() Kind { return KindBytes }

// ObjectBody carries an opaque CBOR-encodable value.
type ObjectBody struct {
	Value any `cbor:"v"`
}

func (*ObjectBody) Kind() Kind { return KindObject }

// MapEntry is one key of a MapBody.
type MapEntry struct {
	Key   string `cbor:"k"`
	Value Value  `cbor:"v"`
}

// MapBody is an ordered key/value payload. Keys are unique.
type MapBody struct {
	Entries []MapEntry `cbor:"e"`
}

func (*MapBody) Kind() Kind { return KindMap }

// Set replaces key in place or appends it.
func (m *MapBody) Set(key string, v Value) {
	for i := range m.Entries {
		if m.Entries[i].Key == key {
			m.Entries[i].Value = v
			return
		}
	}
	m.Entries = append(m.Entries, MapEntry{Key: key, Value: v})
}

// Get returns the value for key.
func (m *MapBody) Get(key string) (Value, bool) {
	for _, e := range m.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Keys returns keys in insertion order.
func (m *MapBody) Keys() []string {
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Key
	}
	return out
}

// StreamBody is a sequence of primitive values.
type StreamBody struct {
	Values []Value `cbor:"v"`
}

func (*StreamBody) Kind() Kind { return KindStream }

// Append adds values to the end of the stream.
func (s *StreamBody) Append(vs ...Value) { s.Values = append(s.Values, vs...) }

// Len returns the number of values.
func (s *StreamBody) Len() int { return len(s.Values) }

// newBody returns an empty body for k. KindEmpty yields nil.
func newBody(k Kind) (Body, error) {
	switch k {
	case KindEmpty:
		return nil, nil
	case KindText:
		return &TextBody{}, nil
	case KindBytes:
		return &BytesBody{}, nil
	case KindObject:
		return &ObjectBody{}, nil
	case KindMap:
		return &MapBody{}, nil
	case KindStream:
		return &StreamBody{}, nil
	}
	return nil, fmt.Errorf("%w: body kind %d", ErrInvalid, k)
}
