package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/shyifrah/kas/pkg/id"
)

const (
	MinPriority     = 0
	MaxPriority     = 9
	DefaultPriority = 4
)

// ErrInvalid marks a structurally invalid message or value.
var ErrInvalid = errors.New("message: invalid")

var ids = id.NewGenerator()

// Message is the unit stored in queues. Once handed to Put it must not be
// mutated by the producer; Get transfers ownership to the consumer.
type Message struct {
	ID            id.ID
	CorrelationID string
	Priority      int
	Timestamp     time.Time
	Properties    map[string]Value
	Body          Body
}

// New returns a message with a fresh id, the default priority and the
// current time.
func New(body Body) *Message {
	return &Message{
		ID:        ids.Next(),
		Priority:  DefaultPriority,
		Timestamp: time.Now(),
		Body:      body,
	}
}

func NewText(s string) *Message  { return New(&TextBody{Text: s}) }
func NewBytes(b []byte) *Message { return New(&BytesBody{Data: append([]byte(nil), b...)}) }
func NewObject(v any) *Message   { return New(&ObjectBody{Value: v}) }
func NewMap() *Message           { return New(&MapBody{}) }
func NewStream() *Message        { return New(&StreamBody{}) }

// Kind returns the body variant.
func (m *Message) Kind() Kind {
	if m.Body == nil {
		return KindEmpty
	}
	return m.Body.Kind()
}

// TypeID implements codec.Record.
func (m *Message) TypeID() uint16 { return uint16(m.Kind()) }

// SetProperty sets a named property.
func (m *Message) SetProperty(name string, v Value) {
	if m.Properties == nil {
		m.Properties = make(map[string]Value)
	}
	m.Properties[name] = v
}

// Property returns a named property.
func (m *Message) Property(name string) (Value, bool) {
	v, ok := m.Properties[name]
	return v, ok
}

// Text returns the body text for text messages.
func (m *Message) Text() (string, bool) {
	if b, ok := m.Body.(*TextBody); ok {
		return b.Text, true
	}
	return "", false
}

// EnsureID assigns an id and timestamp when the producer left them unset.
func (m *Message) EnsureID() {
	if m.ID.IsZero() {
		m.ID = ids.Next()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
}

// Validate checks the priority range and property kinds.
func (m *Message) Validate() error {
	if m.Priority < MinPriority || m.Priority > MaxPriority {
		return fmt.Errorf("%w: priority %d outside %d..%d", ErrInvalid, m.Priority, MinPriority, MaxPriority)
	}
	for name, v := range m.Properties {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
	}
	if m.Body != nil {
		if _, ok := kindNames[m.Body.Kind()]; !ok {
			return fmt.Errorf("%w: body kind %d", ErrInvalid, m.Body.Kind())
		}
	}
	return nil
}

func (m *Message) String() string {
	return fmt.Sprintf("message{id=%s kind=%s priority=%d}", m.ID, m.Kind(), m.Priority)
}
