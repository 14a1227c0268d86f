package session

import (
	"context"
	"errors"
	"math"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shyifrah/kas/internal/access"
	"github.com/shyifrah/kas/internal/auth"
	"github.com/shyifrah/kas/internal/codec"
	"github.com/shyifrah/kas/internal/message"
	"github.com/shyifrah/kas/internal/packet"
	"github.com/shyifrah/kas/internal/queue"
)

type fixture struct {
	handler  *Handler
	queues   *queue.Registry
	shutdown atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hash := func(pw string) string {
		h, err := auth.HashPassword(pw, bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		return h
	}
	dir, err := auth.NewDirectory([]auth.User{
		{Name: "admin", PasswordHash: hash("admin-pw"), Groups: []string{"admins"}},
		{Name: "user42", PasswordHash: hash("pw42"), Groups: []string{"group7"}},
	})
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	am := access.NewManager(dir)
	err = am.Apply(map[access.ClassName]access.ListSpec{
		access.ClassCommand: {Entries: []access.EntrySpec{
			{Pattern: ".*", Groups: map[string]access.Level{"admins": access.Execute}},
			{Pattern: "DEFINE|DELETE|QUERY", Groups: map[string]access.Level{"group7": access.Execute}},
		}},
		access.ClassQueue: {Entries: []access.EntrySpec{
			{Pattern: "PAYROLL.*", Users: map[string]access.Level{"user42": access.None}},
			{Pattern: ".*", Groups: map[string]access.Level{
				"group7": access.Read | access.Write | access.Alter,
				"admins": access.Read | access.Write | access.Alter,
			}},
		}},
		access.ClassServer: {Entries: []access.EntrySpec{
			{Pattern: ".*", Groups: map[string]access.Level{"admins": access.Alter}},
		}},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	f := &fixture{queues: queue.NewRegistry(queue.Options{})}
	f.handler = NewHandler(Options{
		Queues:     f.queues,
		Access:     am,
		Auth:       dir,
		ServerName: "KAS1",
		Shutdown:   func() { f.shutdown.Add(1) },
	})
	return f
}

// connect starts a session and returns the client end plus a channel closed
// when Serve returns.
func (f *fixture) connect(t *testing.T) (*codec.Conn, <-chan struct{}) {
	t.Helper()
	a, b := net.Pipe()
	server := codec.NewConn(a, packet.Codec())
	client := codec.NewConn(b, packet.Codec())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.handler.Serve(context.Background(), server)
	}()
	t.Cleanup(func() {
		_ = client.Close()
		<-done
	})
	return client, done
}

func call(t *testing.T, c *codec.Conn, req codec.Record) codec.Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Send(ctx, req); err != nil {
		t.Fatalf("send %T: %v", req, err)
	}
	resp, err := c.Receive(ctx)
	if err != nil {
		t.Fatalf("receive for %T: %v", req, err)
	}
	return resp
}

func login(t *testing.T, f *fixture, user, pw string) *codec.Conn {
	t.Helper()
	c, _ := f.connect(t)
	resp := call(t, c, &packet.AuthRequest{User: user, Password: pw, Client: "test"})
	ar, ok := resp.(*packet.AuthResponse)
	if !ok || ar.Status != packet.StatusOK || ar.SessionID == "" || ar.Server != "KAS1" {
		t.Fatalf("login %s: %+v", user, resp)
	}
	return c
}

func wantStatus(t *testing.T, resp codec.Record, want packet.Status) {
	t.Helper()
	if got := responseStatus(resp); got != want {
		t.Fatalf("status %s, want %s (%+v)", got, want, resp)
	}
}

func TestBadCredentialsEndSession(t *testing.T) {
	f := newFixture(t)
	c, done := f.connect(t)
	resp := call(t, c, &packet.AuthRequest{User: "user42", Password: "wrong"})
	wantStatus(t, resp, packet.StatusUnauthenticated)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("session should end after failed auth")
	}
}

func TestRequestBeforeAuthIsRejected(t *testing.T) {
	f := newFixture(t)
	c, done := f.connect(t)
	resp := call(t, c, &packet.PingRequest{})
	wantStatus(t, resp, packet.StatusUnauthenticated)
	<-done
}

func TestQueueLifecycle(t *testing.T) {
	f := newFixture(t)
	c := login(t, f, "user42", "pw42")

	wantStatus(t, call(t, c, &packet.DefineQueueRequest{Name: "orders.in", Threshold: 2}), packet.StatusOK)
	wantStatus(t, call(t, c, &packet.DefineQueueRequest{Name: "ORDERS.IN"}), packet.StatusAlreadyExists)

	msg := message.NewText("order-1")
	msg.SetProperty("region", message.String("eu"))
	wantStatus(t, call(t, c, &packet.PutRequest{Queue: "orders.in", Message: msg}), packet.StatusOK)
	wantStatus(t, call(t, c, &packet.PutRequest{Queue: "orders.in", Message: message.NewText("order-2")}), packet.StatusOK)
	wantStatus(t, call(t, c, &packet.PutRequest{Queue: "orders.in", Message: message.NewText("order-3")}), packet.StatusSuspended)

	resp := call(t, c, &packet.GetRequest{Queue: "ORDERS.IN", Selector: `properties.region == "eu"`})
	wantStatus(t, resp, packet.StatusOK)
	if txt, _ := resp.(*packet.GetResponse).Message.Text(); txt != "order-1" {
		t.Fatalf("got %q", txt)
	}

	wantStatus(t, call(t, c, &packet.DeleteQueueRequest{Name: "ORDERS.IN"}), packet.StatusNotEmpty)
	wantStatus(t, call(t, c, &packet.DeleteQueueRequest{Name: "ORDERS.IN", Force: true}), packet.StatusOK)
	wantStatus(t, call(t, c, &packet.GetRequest{Queue: "ORDERS.IN"}), packet.StatusNotFound)
}

func TestGetWithTimeoutReturnsNoMessage(t *testing.T) {
	f := newFixture(t)
	_, _ = f.queues.Define(queue.Definition{Name: "EMPTY"})
	c := login(t, f, "user42", "pw42")
	start := time.Now()
	wantStatus(t, call(t, c, &packet.GetRequest{Queue: "EMPTY", TimeoutMs: 100, PollMs: 20}), packet.StatusNoMessage)
	if el := time.Since(start); el < 100*time.Millisecond {
		t.Fatalf("returned after %v", el)
	}
}

func TestHugeGetTimeoutIsCapped(t *testing.T) {
	f := newFixture(t)
	f.handler.opts.MaxGetWait = 150 * time.Millisecond
	_, _ = f.queues.Define(queue.Definition{Name: "EMPTY"})
	c := login(t, f, "user42", "pw42")
	start := time.Now()
	wantStatus(t, call(t, c, &packet.GetRequest{Queue: "EMPTY", TimeoutMs: math.MaxInt64, PollMs: math.MaxInt64}), packet.StatusNoMessage)
	if el := time.Since(start); el < 150*time.Millisecond {
		t.Fatalf("oversized timeout returned after %v, want the configured cap", el)
	}
}

func TestCapMillis(t *testing.T) {
	limit := 5 * time.Minute
	tests := []struct {
		ms   int64
		want time.Duration
	}{
		{0, 0},
		{-1, 0},
		{250, 250 * time.Millisecond},
		{limit.Milliseconds(), limit},
		{math.MaxInt64, limit},
		{math.MaxInt64 / 1000, limit},
	}
	for _, tt := range tests {
		if got := capMillis(tt.ms, limit); got != tt.want {
			t.Fatalf("capMillis(%d): got %v want %v", tt.ms, got, tt.want)
		}
	}
}

func TestAccessIsEnforced(t *testing.T) {
	f := newFixture(t)
	_, _ = f.queues.Define(queue.Definition{Name: "PAYROLL.SECRET"})
	_, _ = f.queues.Define(queue.Definition{Name: "ORDERS.IN"})
	c := login(t, f, "user42", "pw42")

	wantStatus(t, call(t, c, &packet.PutRequest{Queue: "PAYROLL.SECRET", Message: message.NewText("x")}), packet.StatusDenied)
	wantStatus(t, call(t, c, &packet.GetRequest{Queue: "PAYROLL.SECRET"}), packet.StatusDenied)
	wantStatus(t, call(t, c, &packet.PutRequest{Queue: "ORDERS.IN", Message: message.NewText("x")}), packet.StatusOK)
	wantStatus(t, call(t, c, &packet.ShutdownRequest{}), packet.StatusDenied)
	if f.shutdown.Load() != 0 {
		t.Fatalf("denied shutdown must not run the hook")
	}

	resp := call(t, c, &packet.QueryQueuesRequest{})
	wantStatus(t, resp, packet.StatusOK)
	qs := resp.(*packet.QueryQueuesResponse).Queues
	if len(qs) != 1 || qs[0].Name != "ORDERS.IN" || qs[0].Size != 1 {
		t.Fatalf("query should hide unreadable queues: %+v", qs)
	}
}

func TestAuthorizedShutdownRunsHookAfterResponse(t *testing.T) {
	f := newFixture(t)
	c := login(t, f, "admin", "admin-pw")
	wantStatus(t, call(t, c, &packet.ShutdownRequest{}), packet.StatusOK)
	deadline := time.Now().Add(time.Second)
	for f.shutdown.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if f.shutdown.Load() != 1 {
		t.Fatalf("shutdown hook not called")
	}
}

func TestTemporaryQueuesDroppedWhenSessionEnds(t *testing.T) {
	f := newFixture(t)
	c, done := f.connect(t)
	wantStatus(t, call(t, c, &packet.AuthRequest{User: "user42", Password: "pw42"}), packet.StatusOK)
	wantStatus(t, call(t, c, &packet.DefineQueueRequest{Name: "REPLY.1", Disposition: packet.DispositionTemporary}), packet.StatusOK)
	wantStatus(t, call(t, c, &packet.DefineQueueRequest{Name: "KEEP", Disposition: packet.DispositionPermanent}), packet.StatusOK)
	_ = c.Close()
	<-done

	if _, err := f.queues.Lookup("REPLY.1"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("temporary queue should be gone: %v", err)
	}
	if _, err := f.queues.Lookup("KEEP"); err != nil {
		t.Fatalf("permanent queue should remain: %v", err)
	}
}

func TestCorruptFrameEndsSession(t *testing.T) {
	f := newFixture(t)
	a, b := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.handler.Serve(context.Background(), codec.NewConn(a, packet.Codec()))
	}()
	defer b.Close()

	client := codec.NewConn(b, packet.Codec())
	resp := call(t, client, &packet.AuthRequest{User: "user42", Password: "pw42"})
	wantStatus(t, resp, packet.StatusOK)

	if _, err := b.Write([]byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("session should end on a corrupt frame")
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want packet.Status
	}{
		{nil, packet.StatusOK},
		{access.ErrLevelNotEnabled, packet.StatusMisconfigured},
		{errDenied, packet.StatusDenied},
		{queue.ErrNotFound, packet.StatusNotFound},
		{queue.ErrSuspended, packet.StatusSuspended},
		{message.ErrInvalid, packet.StatusBadRequest},
		{errors.New("disk on fire"), packet.StatusInternal},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Fatalf("statusFor(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
	if reasonFor(errors.New("disk on fire")) != "internal error" {
		t.Fatalf("internal errors must not leak details")
	}
}
