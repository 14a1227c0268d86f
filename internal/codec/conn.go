package codec

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"
)

// Conn carries frames over a net.Conn. Send and Receive may be called from
// different goroutines; concurrent Sends are serialized so frames never
// interleave, and so are concurrent Receives.
type Conn struct {
	nc    net.Conn
	codec *Codec
	br    *bufio.Reader

	rmu sync.Mutex
	wmu sync.Mutex
}

// NewConn wraps nc.
func NewConn(nc net.Conn, c *Codec) *Conn {
	return &Conn{nc: nc, codec: c, br: bufio.NewReader(nc)}
}

// Codec returns the codec used on this connection.
func (c *Conn) Codec() *Codec { return c.codec }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Close closes the underlying connection, unblocking pending calls.
func (c *Conn) Close() error { return c.nc.Close() }

// Send writes rec as one frame. A done ctx interrupts a blocked write.
func (c *Conn) Send(ctx context.Context, rec Record) error {
	frame, err := c.codec.Marshal(rec)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	release := bindDeadline(ctx, c.nc.SetWriteDeadline)
	defer release()

	n, err := c.nc.Write(frame)
	if err != nil {
		if ctx.Err() != nil && n == 0 {
			return ctx.Err()
		}
		return &TransportError{Op: "write", N: n, Err: err}
	}
	return nil
}

// Receive reads the next frame. When ctx ends before any byte of the frame
// arrived the context error is returned and the connection stays usable.
func (c *Conn) Receive(ctx context.Context) (Record, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	release := bindDeadline(ctx, c.nc.SetReadDeadline)
	defer release()

	rec, err := c.codec.Decode(c.br)
	if err != nil && ctx.Err() != nil && IsIdle(err) {
		return nil, ctx.Err()
	}
	return rec, err
}

// ReceiveTimeout waits up to d for a frame. It returns (nil, nil) when
// nothing arrived in time.
func (c *Conn) ReceiveTimeout(ctx context.Context, d time.Duration) (Record, error) {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	rec, err := c.Receive(tctx)
	if err != nil && ctx.Err() == nil && IsIdle(err) {
		return nil, nil
	}
	return rec, err
}

// bindDeadline applies ctx's deadline through set and arranges for ctx
// cancellation to expire it immediately. The returned func clears both.
func bindDeadline(ctx context.Context, set func(time.Time) error) func() {
	if dl, ok := ctx.Deadline(); ok {
		_ = set(dl)
	} else {
		_ = set(time.Time{})
	}
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		_ = set(time.Unix(1, 0))
	})
	return func() {
		if !stop() {
			<-fired
		}
		_ = set(time.Time{})
	}
}
