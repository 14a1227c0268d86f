package queuestore

import (
	"context"
	"errors"
	"testing"

	"github.com/shyifrah/kas/internal/message"
	"github.com/shyifrah/kas/internal/queue"
	pebblestore "github.com/shyifrah/kas/internal/storage/pebble"
)

func openDB(t *testing.T, dir string) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return db
}

func newStore(t *testing.T, db *pebblestore.DB) *Store {
	t.Helper()
	s, err := New(db, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordRoundtrip(t *testing.T) {
	enc := encodeRecord(recordHeader{Version: recordVersion, Flags: flagZstd}, []byte("payload"))
	h, p, err := decodeRecord(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Flags != flagZstd || string(p) != "payload" {
		t.Fatalf("mismatch: %+v %q", h, p)
	}
}

func TestRecordCRCFail(t *testing.T) {
	enc := encodeRecord(recordHeader{Version: recordVersion}, []byte("b"))
	enc[len(enc)-1] ^= 0xFF
	if _, _, err := decodeRecord(enc); !errors.Is(err, errBadRecord) {
		t.Fatalf("expected crc fail, got %v", err)
	}
}

func TestSnapshotAndRestoreAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db := openDB(t, dir)
	s := newStore(t, db)
	reg := queue.NewRegistry(queue.Options{Store: s})
	if _, err := reg.Define(queue.Definition{Name: "ORDERS", Threshold: 10, Description: "orders"}); err != nil {
		t.Fatalf("define: %v", err)
	}
	if _, err := reg.Define(queue.Definition{Name: "SCRATCH", Disposition: queue.Temporary, Owner: "s1"}); err != nil {
		t.Fatalf("define: %v", err)
	}
	low := message.NewText("low")
	low.Priority = 1
	high := message.NewText("high")
	high.Priority = 8
	high.SetProperty("k", message.String("v"))
	_ = reg.Put("ORDERS", low)
	_ = reg.Put("ORDERS", high)
	_ = reg.Put("SCRATCH", message.NewText("gone"))

	if n, err := s.Snapshot(ctx, reg); err != nil || n != 2 {
		t.Fatalf("snapshot: %d %v", n, err)
	}
	_ = db.Close()

	db2 := openDB(t, dir)
	defer db2.Close()
	s2 := newStore(t, db2)
	reg2 := queue.NewRegistry(queue.Options{Store: s2})
	if n, err := s2.Restore(ctx, reg2); err != nil || n != 2 {
		t.Fatalf("restore: %d %v", n, err)
	}
	if _, err := reg2.Lookup("SCRATCH"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("temporary queue must not be restored: %v", err)
	}
	q, err := reg2.Lookup("ORDERS")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if d := q.Definition(); d.Threshold != 10 || d.Description != "orders" || d.Disposition != queue.Permanent {
		t.Fatalf("definition %+v", d)
	}
	m, err := reg2.Get(ctx, "ORDERS", 0, 0, nil)
	if err != nil || m == nil {
		t.Fatalf("get: %v %v", m, err)
	}
	if txt, _ := m.Text(); txt != "high" || m.ID != high.ID {
		t.Fatalf("want high first, got %v", m)
	}
	if v, _ := m.Property("k"); v.Str != "v" {
		t.Fatalf("property lost")
	}
}

func TestDeleteDefinitionRemovesContents(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, t.TempDir())
	defer db.Close()
	s := newStore(t, db)

	_ = s.SaveDefinition(queue.Definition{Name: "A", Disposition: queue.Permanent})
	_ = s.SaveDefinition(queue.Definition{Name: "AB", Disposition: queue.Permanent})
	_ = s.SaveMessages(ctx, "A", []*message.Message{message.NewText("x")})
	_ = s.SaveMessages(ctx, "AB", []*message.Message{message.NewText("y")})

	if err := s.DeleteDefinition("A"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	defs, _ := s.Definitions(ctx)
	if len(defs) != 1 || defs[0].Name != "AB" {
		t.Fatalf("defs %+v", defs)
	}
	if msgs, _ := s.LoadMessages(ctx, "A"); len(msgs) != 0 {
		t.Fatalf("contents of A should be gone")
	}
	if msgs, _ := s.LoadMessages(ctx, "AB"); len(msgs) != 1 {
		t.Fatalf("AB must be untouched, got %d", len(msgs))
	}
}

func TestCorruptRecordIsSkipped(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, t.TempDir())
	defer db.Close()
	s := newStore(t, db)

	_ = s.SaveMessages(ctx, "Q", []*message.Message{message.NewText("a"), message.NewText("b")})
	key := msgKey("Q", 0)
	v, err := db.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	v[len(v)/2] ^= 0xff
	_ = db.Set(key, v)

	msgs, err := s.LoadMessages(ctx, "Q")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("want 1 surviving message, got %d", len(msgs))
	}
	if txt, _ := msgs[0].Text(); txt != "b" {
		t.Fatalf("got %q", txt)
	}
}
