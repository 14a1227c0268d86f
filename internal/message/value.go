package message

import (
	"fmt"
)

// ValueKind tags the primitive held by a Value.
type ValueKind uint8

const (
	ValueString ValueKind = iota + 1
	ValueInt
	ValueLong
	ValueBool
	ValueBytes
	ValueDouble
	ValueObject
)

var valueKindNames = map[ValueKind]string{
	ValueString: "string",
	ValueInt:    "int",
	ValueLong:   "long",
	ValueBool:   "bool",
	ValueBytes:  "bytes",
	ValueDouble: "double",
	ValueObject: "object",
}

func (k ValueKind) String() string {
	if n, ok := valueKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ValueKind(%d)", uint8(k))
}

// Value is a typed property or stream element. Only the field matching Kind
// is meaningful; int and long share Int.
type Value struct {
	Kind   ValueKind `cbor:"k"`
	Str    string    `cbor:"s,omitempty"`
	Int    int64     `cbor:"i,omitempty"`
	Bool   bool      `cbor:"b,omitempty"`
	Bytes  []byte    `cbor:"y,omitempty"`
	Float  float64   `cbor:"f,omitempty"`
	Object any       `cbor:"o,omitempty"`
}

func String(s string) Value  { return Value{Kind: ValueString, Str: s} }
func Int(i int32) Value      { return Value{Kind: ValueInt, Int: int64(i)} }
func Long(i int64) Value     { return Value{Kind: ValueLong, Int: i} }
func Bool(b bool) Value      { return Value{Kind: ValueBool, Bool: b} }
func Double(f float64) Value { return Value{Kind: ValueDouble, Float: f} }

// Bytes copies b.
func Bytes(b []byte) Value {
	return Value{Kind: ValueBytes, Bytes: append([]byte(nil), b...)}
}

// Object wraps an arbitrary CBOR-encodable value. After a round trip maps
// come back as map[string]any and integers as int64 or uint64.
func Object(v any) Value { return Value{Kind: ValueObject, Object: v} }

// Interface returns the natural Go value.
func (v Value) Interface() any {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueInt, ValueLong:
		return v.Int
	case ValueBool:
		return v.Bool
	case ValueBytes:
		return v.Bytes
	case ValueDouble:
		return v.Float
	case ValueObject:
		return v.Object
	}
	return nil
}

func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueBytes:
		return fmt.Sprintf("%d bytes", len(v.Bytes))
	}
	return fmt.Sprint(v.Interface())
}

// Validate rejects unknown kinds.
func (v Value) Validate() error {
	if _, ok := valueKindNames[v.Kind]; !ok {
		return fmt.Errorf("%w: value kind %d", ErrInvalid, v.Kind)
	}
	return nil
}
