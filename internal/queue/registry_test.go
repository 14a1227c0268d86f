package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shyifrah/kas/internal/message"
)

type memStore struct {
	mu   sync.Mutex
	defs map[string]Definition
}

func newMemStore() *memStore { return &memStore{defs: make(map[string]Definition)} }

func (s *memStore) SaveDefinition(def Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.Name] = def
	return nil
}

func (s *memStore) DeleteDefinition(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.defs, name)
	return nil
}

type recorder struct {
	nopObserver
	mu      sync.Mutex
	changes []StateChange
}

func (r *recorder) StateChanged(_ string, c StateChange) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func TestDefineNormalizesAndRejectsDuplicates(t *testing.T) {
	r := NewRegistry(Options{})
	if _, err := r.Define(Definition{Name: " orders.in "}); err != nil {
		t.Fatalf("define: %v", err)
	}
	if err := r.Put("ORDERS.IN", message.NewText("keep me")); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, err := r.Define(Definition{Name: "Orders.In", Threshold: 1})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
	q, err := r.Lookup("orders.in")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if q.Size() != 1 || q.Definition().Threshold != 0 {
		t.Fatalf("existing queue was modified: size=%d def=%+v", q.Size(), q.Definition())
	}
	if _, err := r.Define(Definition{Name: "  "}); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("want ErrInvalidName, got %v", err)
	}
}

func TestDeleteRequiresForceWhenNotEmpty(t *testing.T) {
	store := newMemStore()
	r := NewRegistry(Options{Store: store})
	if _, err := r.Define(Definition{Name: "Q"}); err != nil {
		t.Fatalf("define: %v", err)
	}
	_ = r.Put("Q", message.NewText("x"))

	if err := r.Delete("Q", false); !errors.Is(err, ErrNotEmpty) {
		t.Fatalf("want ErrNotEmpty, got %v", err)
	}
	if _, err := r.Lookup("Q"); err != nil {
		t.Fatalf("queue should survive a refused delete: %v", err)
	}
	if err := r.Delete("Q", true); err != nil {
		t.Fatalf("forced delete: %v", err)
	}
	if _, err := r.Lookup("Q"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
	if err := r.Delete("Q", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
	if len(store.defs) != 0 {
		t.Fatalf("stored definition not removed: %v", store.defs)
	}
}

func TestPermanentDefinitionsArePersisted(t *testing.T) {
	store := newMemStore()
	r := NewRegistry(Options{Store: store})
	_, _ = r.Define(Definition{Name: "P", Disposition: Permanent, Threshold: 10})
	_, _ = r.Define(Definition{Name: "T", Disposition: Temporary, Owner: "s1"})
	if _, ok := store.defs["P"]; !ok {
		t.Fatalf("permanent queue not stored")
	}
	if _, ok := store.defs["T"]; ok {
		t.Fatalf("temporary queue must not be stored")
	}
}

func TestPutUnknownQueue(t *testing.T) {
	r := NewRegistry(Options{})
	if err := r.Put("NOPE", message.NewText("x")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPutAssignsIDAndValidates(t *testing.T) {
	r := NewRegistry(Options{})
	_, _ = r.Define(Definition{Name: "Q"})
	m := &message.Message{Body: &message.TextBody{Text: "x"}, Priority: 3}
	if err := r.Put("Q", m); err != nil {
		t.Fatalf("put: %v", err)
	}
	if m.ID.IsZero() {
		t.Fatalf("id not assigned")
	}
	bad := message.NewText("x")
	bad.Priority = 42
	if err := r.Put("Q", bad); !errors.Is(err, message.ErrInvalid) {
		t.Fatalf("want message.ErrInvalid, got %v", err)
	}
}

func TestRegistryReportsStateChanges(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(Options{Observer: rec})
	_, _ = r.Define(Definition{Name: "Q", Threshold: 2})
	_ = r.Put("Q", message.NewText("1"))
	_ = r.Put("Q", message.NewText("2"))
	if err := r.Put("Q", message.NewText("3")); !errors.Is(err, ErrSuspended) {
		t.Fatalf("want ErrSuspended, got %v", err)
	}
	if _, err := r.Get(context.Background(), "Q", 0, 0, nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rec.changes) != 2 || rec.changes[0] != BecameSuspended || rec.changes[1] != BecameResumed {
		t.Fatalf("changes %v", rec.changes)
	}
}

func TestDeleteWakesWaiters(t *testing.T) {
	r := NewRegistry(Options{})
	_, _ = r.Define(Definition{Name: "Q"})
	done := make(chan error, 1)
	go func() {
		_, err := r.Get(context.Background(), "Q", 5*time.Second, time.Second, nil)
		done <- err
	}()
	time.Sleep(30 * time.Millisecond)
	if err := r.Delete("Q", false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("waiter not woken by delete")
	}
}

func TestDropOwnedRemovesOnlyThatSessionsTemporaryQueues(t *testing.T) {
	r := NewRegistry(Options{})
	_, _ = r.Define(Definition{Name: "T1", Disposition: Temporary, Owner: "s1"})
	_, _ = r.Define(Definition{Name: "T2", Disposition: Temporary, Owner: "s2"})
	_, _ = r.Define(Definition{Name: "P1", Disposition: Permanent, Owner: "s1"})
	_ = r.Put("T1", message.NewText("x"))

	if n := r.DropOwned("s1"); n != 1 {
		t.Fatalf("dropped %d, want 1", n)
	}
	if _, err := r.Lookup("T1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("T1 should be gone: %v", err)
	}
	for _, name := range []string{"T2", "P1"} {
		if _, err := r.Lookup(name); err != nil {
			t.Fatalf("%s should survive: %v", name, err)
		}
	}
}

func TestQueryFiltersByPattern(t *testing.T) {
	r := NewRegistry(Options{})
	for _, n := range []string{"ORDERS.IN", "ORDERS.OUT", "PAYROLL.SECRET"} {
		_, _ = r.Define(Definition{Name: n})
	}
	_ = r.Put("ORDERS.OUT", message.NewText("x"))

	infos, err := r.Query("orders\\..*")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "ORDERS.IN" || infos[1].Name != "ORDERS.OUT" || infos[1].Size != 1 {
		t.Fatalf("got %+v", infos)
	}
	all, _ := r.Query("")
	if len(all) != 3 {
		t.Fatalf("empty pattern should list all, got %d", len(all))
	}
	if _, err := r.Query("("); err == nil {
		t.Fatalf("bad pattern should fail")
	}
}

func TestRestoreRecomputesState(t *testing.T) {
	r := NewRegistry(Options{})
	msgs := []*message.Message{message.NewText("a"), message.NewText("b")}
	q, err := r.Restore(Definition{Name: "R", Threshold: 2, Disposition: Permanent}, msgs)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if q.Size() != 2 || q.State() != Suspended {
		t.Fatalf("size=%d state=%s", q.Size(), q.State())
	}
}

// hookStore runs onSave while a definition is being persisted.
type hookStore struct {
	*memStore
	onSave func(Definition)
	err    error
}

func (s *hookStore) SaveDefinition(def Definition) error {
	if s.onSave != nil {
		s.onSave(def)
	}
	if s.err != nil {
		return s.err
	}
	return s.memStore.SaveDefinition(def)
}

func TestDefineUnpublishedUntilPersisted(t *testing.T) {
	store := &hookStore{memStore: newMemStore(), err: errors.New("disk full")}
	r := NewRegistry(Options{Store: store})
	var putErr error
	store.onSave = func(def Definition) {
		putErr = r.Put(def.Name, message.NewText("early"))
	}

	if _, err := r.Define(Definition{Name: "ledger"}); err == nil {
		t.Fatalf("define should fail when the definition cannot be stored")
	}
	if !errors.Is(putErr, ErrNotFound) {
		t.Fatalf("put during define must not be accepted, got %v", putErr)
	}
	if _, err := r.Lookup("LEDGER"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("failed define left a queue behind: %v", err)
	}

	store.err = nil
	store.onSave = nil
	if _, err := r.Define(Definition{Name: "ledger"}); err != nil {
		t.Fatalf("define after recovery: %v", err)
	}
}
