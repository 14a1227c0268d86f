package message

import (
	"fmt"
	"time"

	"github.com/shyifrah/kas/internal/codec"
	"github.com/shyifrah/kas/pkg/id"
)

// wireMessage is the CBOR shape of a Message. The body travels raw next to
// its kind so it can be rebuilt without knowing the enclosing record.
type wireMessage struct {
	ID            id.ID            `cbor:"1,keyasint"`
	CorrelationID string           `cbor:"2,keyasint,omitempty"`
	Priority      int              `cbor:"3,keyasint"`
	Timestamp     int64            `cbor:"4,keyasint,omitempty"`
	Properties    map[string]Value `cbor:"5,keyasint,omitempty"`
	Kind          Kind             `cbor:"6,keyasint"`
	Body          codec.RawMessage `cbor:"7,keyasint,omitempty"`
}

// MarshalCBOR implements cbor.Marshaler.
func (m *Message) MarshalCBOR() ([]byte, error) {
	w := wireMessage{
		ID:            m.ID,
		CorrelationID: m.CorrelationID,
		Priority:      m.Priority,
		Properties:    m.Properties,
		Kind:          m.Kind(),
	}
	if !m.Timestamp.IsZero() {
		w.Timestamp = m.Timestamp.UnixNano()
	}
	if m.Body != nil {
		raw, err := codec.Marshal(m.Body)
		if err != nil {
			return nil, fmt.Errorf("message body: %w", err)
		}
		w.Body = raw
	}
	return codec.Marshal(w)
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (m *Message) UnmarshalCBOR(data []byte) error {
	var w wireMessage
	if err := codec.Unmarshal(data, &w); err != nil {
		return err
	}
	body, err := newBody(w.Kind)
	if err != nil {
		return err
	}
	if body != nil && len(w.Body) > 0 {
		if err := codec.Unmarshal(w.Body, body); err != nil {
			return fmt.Errorf("message %s body: %w", w.Kind, err)
		}
	}
	*m = Message{
		ID:            w.ID,
		CorrelationID: w.CorrelationID,
		Priority:      w.Priority,
		Properties:    w.Properties,
		Body:          body,
	}
	if w.Timestamp != 0 {
		m.Timestamp = time.Unix(0, w.Timestamp)
	}
	return nil
}

// Registry returns a codec registry with one type id per body kind.
func Registry() *codec.Registry {
	reg := codec.NewRegistry("message")
	for k := range kindNames {
		reg.MustRegister(uint16(k), func() codec.Record { return &Message{} })
	}
	return reg
}

// Codec returns a codec over Registry.
func Codec(opts ...codec.Option) *codec.Codec {
	return codec.New(Registry(), opts...)
}
