package queue

import (
	"context"
	"sync"
	"time"

	"github.com/shyifrah/kas/internal/message"
)

// Matcher filters messages on get. nil accepts every message.
type Matcher func(*message.Message) bool

// Queue is one named, capped message container.
type Queue struct {
	def Definition

	mu       sync.Mutex
	items    Deque
	state    State
	deleted  bool
	notifyCh chan struct{}
}

func newQueue(def Definition) *Queue {
	return &Queue{def: def, notifyCh: make(chan struct{})}
}

// Name returns the normalized queue name.
func (q *Queue) Name() string { return q.def.Name }

// Definition returns the queue's definition.
func (q *Queue) Definition() Definition { return q.def }

// Size returns the number of queued messages.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// State returns the current backpressure state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Info returns a consistent view of size and state.
func (q *Queue) Info() Info {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Info{Definition: q.def, Size: q.items.Len(), State: q.state}
}

// Put appends m. It fails fast with ErrSuspended while the queue is at its
// threshold and with ErrDeleted once the queue is gone.
func (q *Queue) Put(m *message.Message) (StateChange, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deleted {
		return NoChange, ErrDeleted
	}
	if q.state == Suspended {
		return NoChange, ErrSuspended
	}
	q.items.PushBack(m)
	q.wakeLocked()
	if !q.def.Unlimited() && q.items.Len() >= q.def.Threshold {
		q.state = Suspended
		return BecameSuspended, nil
	}
	return NoChange, nil
}

// TryGet removes the next message accepted by match without waiting. A nil
// message means none was available.
func (q *Queue) TryGet(match Matcher) (*message.Message, StateChange, error) {
	m, change, _, err := q.tryGet(match)
	return m, change, err
}

func (q *Queue) tryGet(match Matcher) (*message.Message, StateChange, <-chan struct{}, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deleted {
		return nil, NoChange, nil, ErrDeleted
	}
	m := q.items.PopFirst(match)
	if m == nil {
		return nil, NoChange, q.notifyCh, nil
	}
	if q.state == Suspended && q.items.Len() < q.def.Threshold {
		q.state = Active
		return m, BecameResumed, nil, nil
	}
	return m, NoChange, nil, nil
}

// Get removes the next message, waiting up to timeout for one to arrive. A
// timeout of zero or less returns immediately. poll bounds the time between
// re-checks. A nil message with a nil error means the wait expired; no lock
// is held while waiting.
func (q *Queue) Get(ctx context.Context, timeout, poll time.Duration, match Matcher) (*message.Message, StateChange, error) {
	m, change, wait, err := q.tryGet(match)
	if err != nil || m != nil || timeout <= 0 {
		return m, change, err
	}
	if poll <= 0 || poll > timeout {
		poll = timeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, NoChange, ctx.Err()
		case <-deadline.C:
			m, change, _, err := q.tryGet(match)
			return m, change, err
		case <-wait:
		case <-ticker.C:
		}
		m, change, wait, err = q.tryGet(match)
		if err != nil || m != nil {
			return m, change, err
		}
	}
}

// Snapshot returns the queued messages in service order without removing
// them.
func (q *Queue) Snapshot() []*message.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Snapshot()
}

// restore loads messages in service order, bypassing the suspended check,
// and recomputes the state.
func (q *Queue) restore(msgs []*message.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range msgs {
		q.items.PushBack(m)
	}
	if !q.def.Unlimited() && q.items.Len() >= q.def.Threshold {
		q.state = Suspended
	}
	q.wakeLocked()
}

// markDeleted empties the queue unless it holds messages and force is
// false. Waiters are woken and observe ErrDeleted.
func (q *Queue) markDeleted(force bool) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deleted {
		return 0, ErrDeleted
	}
	if q.items.Len() > 0 && !force {
		return 0, ErrNotEmpty
	}
	n := q.items.Clear()
	q.deleted = true
	q.wakeLocked()
	return n, nil
}

// wakeLocked releases every waiter. Caller holds q.mu.
func (q *Queue) wakeLocked() {
	close(q.notifyCh)
	q.notifyCh = make(chan struct{})
}
