package selector

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/shyifrah/kas/internal/message"
	"github.com/shyifrah/kas/internal/queue"
)

var env = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("priority", cel.IntType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("id", cel.StringType),
		cel.Variable("correlation_id", cel.StringType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("text", cel.StringType),
		cel.Variable("properties", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("now_ms", cel.IntType),
	)
})

// Selector is a compiled expression. The zero value matches everything.
type Selector struct {
	expr string
	prog cel.Program
}

// Compile parses and type-checks expr. An empty expression matches every
// message.
func Compile(expr string) (*Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Selector{}, nil
	}
	e, err := env()
	if err != nil {
		return nil, err
	}
	ast, iss := e.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("selector %q: %w", expr, iss.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("selector %q: must evaluate to bool, got %s", expr, out)
	}
	prog, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", expr, err)
	}
	return &Selector{expr: expr, prog: prog}, nil
}

// String returns the source expression.
func (s *Selector) String() string { return s.expr }

// Match evaluates the selector against m. Evaluation errors, such as a
// missing property, count as no match.
func (s *Selector) Match(m *message.Message) bool {
	if s == nil || s.prog == nil {
		return true
	}
	out, _, err := s.prog.Eval(vars(m))
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// Matcher adapts the selector for queue gets. The empty selector yields nil.
func (s *Selector) Matcher() queue.Matcher {
	if s == nil || s.prog == nil {
		return nil
	}
	return s.Match
}

func vars(m *message.Message) map[string]any {
	props := make(map[string]any, len(m.Properties))
	for k, v := range m.Properties {
		props[k] = v.Interface()
	}
	text, _ := m.Text()
	var ts int64
	if !m.Timestamp.IsZero() {
		ts = m.Timestamp.UnixMilli()
	}
	return map[string]any{
		"priority":       int64(m.Priority),
		"kind":           m.Kind().String(),
		"id":             m.ID.String(),
		"correlation_id": m.CorrelationID,
		"ts_ms":          ts,
		"text":           text,
		"properties":     props,
		"now_ms":         time.Now().UnixMilli(),
	}
}

// Cache memoizes compiled selectors by expression.
type Cache struct {
	mu      sync.Mutex
	max     int
	entries map[string]*Selector
}

// NewCache holds up to max selectors; when full it starts over.
func NewCache(max int) *Cache {
	if max <= 0 {
		max = 256
	}
	return &Cache{max: max, entries: make(map[string]*Selector)}
}

// Get returns the compiled selector for expr, compiling on first use.
func (c *Cache) Get(expr string) (*Selector, error) {
	key := strings.TrimSpace(expr)
	c.mu.Lock()
	s, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return s, nil
	}
	s, err := Compile(key)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if len(c.entries) >= c.max {
		c.entries = make(map[string]*Selector)
	}
	c.entries[key] = s
	c.mu.Unlock()
	return s, nil
}
