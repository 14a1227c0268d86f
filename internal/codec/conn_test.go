package codec

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

func pipeConns(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	c := New(testRegistry())
	ca, cb := NewConn(a, c), NewConn(b, c)
	t.Cleanup(func() {
		_ = ca.Close()
		_ = cb.Close()
	})
	return ca, cb
}

func TestConnSendReceive(t *testing.T) {
	client, server := pipeConns(t)
	ctx := context.Background()

	go func() { _ = client.Send(ctx, &ping{Seq: 42}) }()
	rec, err := server.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if p, ok := rec.(*ping); !ok || p.Seq != 42 {
		t.Fatalf("got %#v", rec)
	}
}

func TestConnReceiveTimeoutNothingYet(t *testing.T) {
	client, server := pipeConns(t)
	ctx := context.Background()

	start := time.Now()
	rec, err := server.ReceiveTimeout(ctx, 50*time.Millisecond)
	if err != nil || rec != nil {
		t.Fatalf("want nothing yet, got %v %v", rec, err)
	}
	if el := time.Since(start); el < 40*time.Millisecond {
		t.Fatalf("returned too early: %v", el)
	}

	// The stream is still aligned after an idle timeout.
	go func() { _ = client.Send(ctx, &pong{Seq: 1}) }()
	rec, err = server.Receive(ctx)
	if err != nil {
		t.Fatalf("receive after idle timeout: %v", err)
	}
	if _, ok := rec.(*pong); !ok {
		t.Fatalf("got %#v", rec)
	}
}

func TestConnReceiveCancelled(t *testing.T) {
	_, server := pipeConns(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := server.Receive(ctx)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("cancel did not interrupt receive")
	}
}

func TestConnPeerClosedIsEOF(t *testing.T) {
	client, server := pipeConns(t)
	_ = client.Close()
	if _, err := server.Receive(context.Background()); err == nil || IsProtocol(err) {
		t.Fatalf("want end of stream, got %v", err)
	}
}

func TestConnConcurrentSendsDoNotInterleave(t *testing.T) {
	client, server := pipeConns(t)
	ctx := context.Background()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = client.Send(ctx, &ping{Seq: i, Note: "payload payload payload"})
		}(i)
	}
	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		rec, err := server.Receive(ctx)
		if err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
		seen[rec.(*ping).Seq] = true
	}
	wg.Wait()
	if len(seen) != n {
		t.Fatalf("saw %d distinct frames, want %d", len(seen), n)
	}
}
