package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shyifrah/kas/internal/access"
	"github.com/shyifrah/kas/internal/auth"
	"github.com/shyifrah/kas/internal/message"
	"github.com/shyifrah/kas/internal/packet"
	"github.com/shyifrah/kas/internal/queue"
	"github.com/shyifrah/kas/internal/server/broker"
	"github.com/shyifrah/kas/internal/session"
)

// startBroker serves a fresh broker on a loopback port and returns its
// address. "ops" may do anything; "viewer" may only read queues.
func startBroker(t *testing.T) (string, chan struct{}) {
	t.Helper()
	hash := func(pw string) string {
		h, err := auth.HashPassword(pw, bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		return h
	}
	dir, err := auth.NewDirectory([]auth.User{
		{Name: "ops", PasswordHash: hash("ops-pw"), Groups: []string{"operators"}},
		{Name: "viewer", PasswordHash: hash("view-pw")},
	})
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	am := access.NewManager(dir)
	err = am.Apply(map[access.ClassName]access.ListSpec{
		access.ClassCommand: {Entries: []access.EntrySpec{
			{Pattern: ".*", Groups: map[string]access.Level{"operators": access.Execute}},
			{Pattern: "QUERY", Users: map[string]access.Level{"viewer": access.Execute}},
		}},
		access.ClassQueue: {Entries: []access.EntrySpec{
			{Pattern: ".*",
				Groups: map[string]access.Level{"operators": access.Read | access.Write | access.Alter},
				Users:  map[string]access.Level{"viewer": access.Read}},
		}},
		access.ClassServer: {Entries: []access.EntrySpec{
			{Pattern: "KAS", Groups: map[string]access.Level{"operators": access.Alter}},
		}},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	stopped := make(chan struct{}, 1)
	h := session.NewHandler(session.Options{
		Queues:   queue.NewRegistry(queue.Options{}),
		Access:   am,
		Auth:     dir,
		Shutdown: func() { stopped <- struct{}{} },
	})
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- broker.New(h, packet.Codec(), nil).Serve(ctx, l) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l.Addr().String(), stopped
}

func dial(t *testing.T, addr, user, pw string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, addr, Options{User: user, Password: pw, Client: "client-test"})
	if err != nil {
		t.Fatalf("dial %s: %v", user, err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDialRejectsBadPassword(t *testing.T) {
	addr, _ := startBroker(t)
	_, err := Dial(testCtx(t), addr, Options{User: "ops", Password: "wrong"})
	if StatusOf(err) != packet.StatusUnauthenticated {
		t.Fatalf("expected UNAUTHENTICATED, got %v", err)
	}
}

func TestQueueRoundTrip(t *testing.T) {
	addr, _ := startBroker(t)
	c := dial(t, addr, "ops", "ops-pw")
	ctx := testCtx(t)
	if c.SessionID() == "" || c.Server() != "KAS" {
		t.Fatalf("session %q server %q", c.SessionID(), c.Server())
	}
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := c.DefineQueue(ctx, QueueSpec{Name: "orders", Threshold: 2}); err != nil {
		t.Fatalf("define: %v", err)
	}
	if err := c.DefineQueue(ctx, QueueSpec{Name: "ORDERS"}); StatusOf(err) != packet.StatusAlreadyExists {
		t.Fatalf("redefine: %v", err)
	}

	low := message.NewText("low")
	low.Priority = 1
	high := message.NewText("high")
	high.Priority = 8
	for _, m := range []*message.Message{low, high} {
		if err := c.Put(ctx, "orders", m); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if err := c.Put(ctx, "orders", message.NewText("over")); StatusOf(err) != packet.StatusSuspended {
		t.Fatalf("put over threshold: %v", err)
	}

	infos, err := c.QueryQueues(ctx, "ORD.*")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(infos) != 1 || infos[0].Size != 2 || !infos[0].Suspended {
		t.Fatalf("query: %+v", infos)
	}

	m, err := c.Get(ctx, "orders", GetOptions{})
	if err != nil || m == nil {
		t.Fatalf("get: %v %v", m, err)
	}
	if text, _ := m.Text(); text != "high" {
		t.Fatalf("first get = %q, want high", text)
	}
	if m.ID.IsZero() {
		t.Fatalf("server should assign an id")
	}
	if _, err := c.Get(ctx, "orders", GetOptions{}); err != nil {
		t.Fatalf("second get: %v", err)
	}
	m, err = c.Get(ctx, "orders", GetOptions{Timeout: 50 * time.Millisecond})
	if err != nil || m != nil {
		t.Fatalf("empty get: %v %v", m, err)
	}
	if err := c.DeleteQueue(ctx, "orders", false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.Put(ctx, "orders", message.NewText("x")); StatusOf(err) != packet.StatusNotFound {
		t.Fatalf("put after delete: %v", err)
	}
}

func TestSelectorGet(t *testing.T) {
	addr, _ := startBroker(t)
	c := dial(t, addr, "ops", "ops-pw")
	ctx := testCtx(t)
	if err := c.DefineQueue(ctx, QueueSpec{Name: "jobs", Disposition: packet.DispositionTemporary}); err != nil {
		t.Fatalf("define: %v", err)
	}
	for _, region := range []string{"eu", "us", "eu"} {
		m := message.NewText(region)
		m.SetProperty("region", message.String(region))
		if err := c.Put(ctx, "jobs", m); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	m, err := c.Get(ctx, "jobs", GetOptions{Selector: `properties.region == "us"`})
	if err != nil || m == nil {
		t.Fatalf("selector get: %v %v", m, err)
	}
	if text, _ := m.Text(); text != "us" {
		t.Fatalf("selected %q, want us", text)
	}
	if _, err := c.Get(ctx, "jobs", GetOptions{Selector: "priority >"}); StatusOf(err) != packet.StatusBadRequest {
		t.Fatalf("bad selector: %v", err)
	}
}

func TestAccessDenied(t *testing.T) {
	addr, _ := startBroker(t)
	ops := dial(t, addr, "ops", "ops-pw")
	viewer := dial(t, addr, "viewer", "view-pw")
	ctx := testCtx(t)
	if err := ops.DefineQueue(ctx, QueueSpec{Name: "audit"}); err != nil {
		t.Fatalf("define: %v", err)
	}
	if err := viewer.Put(ctx, "audit", message.NewText("x")); StatusOf(err) != packet.StatusDenied {
		t.Fatalf("viewer put: %v", err)
	}
	if err := viewer.DefineQueue(ctx, QueueSpec{Name: "mine"}); StatusOf(err) != packet.StatusDenied {
		t.Fatalf("viewer define: %v", err)
	}
	infos, err := viewer.QueryQueues(ctx, "")
	if err != nil || len(infos) != 1 {
		t.Fatalf("viewer query: %+v %v", infos, err)
	}
	if err := viewer.Shutdown(ctx); StatusOf(err) != packet.StatusDenied {
		t.Fatalf("viewer shutdown: %v", err)
	}
}

func TestShutdown(t *testing.T) {
	addr, stopped := startBroker(t)
	c := dial(t, addr, "ops", "ops-pw")
	if err := c.Shutdown(testCtx(t)); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("shutdown hook not called")
	}
}

func TestClosedClient(t *testing.T) {
	addr, _ := startBroker(t)
	c := dial(t, addr, "ops", "ops-pw")
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Ping(testCtx(t)); !errors.Is(err, ErrClosed) {
		t.Fatalf("ping after close: %v", err)
	}
}
