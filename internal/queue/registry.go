package queue

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/shyifrah/kas/internal/message"
	logpkg "github.com/shyifrah/kas/pkg/log"
)

// DefaultPoll is the poll interval used when a get does not name one.
const DefaultPoll = 100 * time.Millisecond

// Store persists permanent queue definitions.
type Store interface {
	SaveDefinition(def Definition) error
	DeleteDefinition(name string) error
}

// Observer receives queue events. Calls happen on the goroutine of the
// triggering operation and must not block.
type Observer interface {
	QueueDefined(def Definition)
	QueueDeleted(name string, dropped int)
	MessagePut(queue string)
	MessageGot(queue string, wait time.Duration)
	StateChanged(queue string, change StateChange)
}

type nopObserver struct{}

func (nopObserver) QueueDefined(Definition)          {}
func (nopObserver) QueueDeleted(string, int)         {}
func (nopObserver) MessagePut(string)                {}
func (nopObserver) MessageGot(string, time.Duration) {}
func (nopObserver) StateChanged(string, StateChange) {}

// Options configures a Registry.
type Options struct {
	Logger      logpkg.Logger
	Store       Store
	Observer    Observer
	DefaultPoll time.Duration
}

// Registry is the process-wide name to queue mapping.
type Registry struct {
	queues sync.Map // string -> *Queue
	// admin serializes define, delete and restore so a queue is only
	// published after its definition is stored.
	admin    sync.Mutex
	store    Store
	observer Observer
	logger   logpkg.Logger
	poll     time.Duration
}

// NewRegistry returns an empty registry.
func NewRegistry(opts Options) *Registry {
	r := &Registry{store: opts.Store, observer: opts.Observer, logger: opts.Logger, poll: opts.DefaultPoll}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	if r.logger == nil {
		r.logger = logpkg.NewNopLogger()
	}
	if r.poll <= 0 {
		r.poll = DefaultPoll
	}
	r.logger = r.logger.WithComponent("queues")
	return r
}

// Define creates a queue. An existing queue of the same name is left
// untouched and ErrAlreadyExists is returned.
func (r *Registry) Define(def Definition) (*Queue, error) {
	name, err := NormalizeName(def.Name)
	if err != nil {
		return nil, err
	}
	def.Name = name
	if def.Disposition == 0 {
		def.Disposition = Permanent
	}
	if def.Disposition == Permanent {
		def.Owner = ""
	}

	r.admin.Lock()
	defer r.admin.Unlock()
	if _, ok := r.queues.Load(name); ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	if def.Disposition == Permanent && r.store != nil {
		if err := r.store.SaveDefinition(def); err != nil {
			return nil, fmt.Errorf("persist definition %s: %w", name, err)
		}
	}
	q := newQueue(def)
	r.queues.Store(name, q)
	r.observer.QueueDefined(def)
	r.logger.Info("queue defined",
		logpkg.Str("queue", name),
		logpkg.Str("disposition", def.Disposition.String()),
		logpkg.Int("threshold", def.Threshold))
	return q, nil
}

// Delete removes a queue. A non-empty queue is only removed with force, in
// which case its messages are discarded.
func (r *Registry) Delete(name string, force bool) error {
	r.admin.Lock()
	defer r.admin.Unlock()
	q, err := r.Lookup(name)
	if err != nil {
		return err
	}
	dropped, err := q.markDeleted(force)
	if errors.Is(err, ErrDeleted) {
		return fmt.Errorf("%w: %s", ErrNotFound, q.Name())
	}
	if err != nil {
		return fmt.Errorf("%w: %s", err, q.Name())
	}
	r.queues.CompareAndDelete(q.Name(), q)
	if q.def.Disposition == Permanent && r.store != nil {
		if err := r.store.DeleteDefinition(q.Name()); err != nil {
			r.logger.Error("failed to remove stored definition", logpkg.Str("queue", q.Name()), logpkg.Err(err))
		}
	}
	r.observer.QueueDeleted(q.Name(), dropped)
	r.logger.Info("queue deleted", logpkg.Str("queue", q.Name()), logpkg.Int("dropped", dropped))
	return nil
}

// Lookup resolves a queue by name.
func (r *Registry) Lookup(name string) (*Queue, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	v, ok := r.queues.Load(n)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, n)
	}
	return v.(*Queue), nil
}

// Put adds m to the named queue, assigning an id when it has none.
func (r *Registry) Put(name string, m *message.Message) error {
	q, err := r.Lookup(name)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	m.EnsureID()
	change, err := q.Put(m)
	if errors.Is(err, ErrDeleted) {
		return fmt.Errorf("%w: %s", ErrNotFound, q.Name())
	}
	if err != nil {
		return fmt.Errorf("%w: %s", err, q.Name())
	}
	r.observer.MessagePut(q.Name())
	r.onStateChange(q, change)
	return nil
}

// Get removes the next message from the named queue, waiting up to timeout.
// poll <= 0 uses the registry default. A nil message and nil error mean no
// message arrived in time.
func (r *Registry) Get(ctx context.Context, name string, timeout, poll time.Duration, match Matcher) (*message.Message, error) {
	q, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if poll <= 0 {
		poll = r.poll
	}
	start := time.Now()
	m, change, err := q.Get(ctx, timeout, poll, match)
	if errors.Is(err, ErrDeleted) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, q.Name())
	}
	if err != nil {
		return nil, err
	}
	if m != nil {
		r.observer.MessageGot(q.Name(), time.Since(start))
	}
	r.onStateChange(q, change)
	return m, nil
}

// Query lists queues whose name matches pattern (whole name, case
// insensitive). An empty pattern lists every queue. Results are sorted by
// name.
func (r *Registry) Query(pattern string) ([]Info, error) {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile("(?i)^(?:" + pattern + ")$")
		if err != nil {
			return nil, fmt.Errorf("queue: bad pattern %q: %w", pattern, err)
		}
	}
	var out []Info
	r.queues.Range(func(k, v any) bool {
		if re == nil || re.MatchString(k.(string)) {
			out = append(out, v.(*Queue).Info())
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Queues returns every queue sorted by name.
func (r *Registry) Queues() []*Queue {
	var out []*Queue
	r.queues.Range(func(_, v any) bool {
		out = append(out, v.(*Queue))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// DropOwned force-deletes every temporary queue defined by owner.
func (r *Registry) DropOwned(owner string) int {
	if owner == "" {
		return 0
	}
	n := 0
	for _, q := range r.Queues() {
		if q.def.Disposition != Temporary || q.def.Owner != owner {
			continue
		}
		if err := r.Delete(q.Name(), true); err == nil {
			n++
		}
	}
	return n
}

// Restore defines a queue without persisting it and loads msgs into it.
func (r *Registry) Restore(def Definition, msgs []*message.Message) (*Queue, error) {
	name, err := NormalizeName(def.Name)
	if err != nil {
		return nil, err
	}
	def.Name = name
	r.admin.Lock()
	defer r.admin.Unlock()
	q := newQueue(def)
	if _, loaded := r.queues.LoadOrStore(name, q); loaded {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	q.restore(msgs)
	r.observer.QueueDefined(def)
	if q.State() == Suspended {
		r.observer.StateChanged(name, BecameSuspended)
	}
	return q, nil
}

func (r *Registry) onStateChange(q *Queue, change StateChange) {
	if change == NoChange {
		return
	}
	r.observer.StateChanged(q.Name(), change)
	r.logger.Info("queue "+change.String(),
		logpkg.Str("queue", q.Name()),
		logpkg.Int("threshold", q.def.Threshold))
}
