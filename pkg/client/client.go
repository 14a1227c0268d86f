package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/shyifrah/kas/internal/codec"
	"github.com/shyifrah/kas/internal/message"
	"github.com/shyifrah/kas/internal/packet"
)

// ErrClosed is returned by calls on a closed client.
var ErrClosed = errors.New("client: closed")

// Options configures Dial.
type Options struct {
	User     string
	Password string
	// Client is a free-form name reported to the server at login.
	Client      string
	DialTimeout time.Duration
	// MaxBody caps the frame body size accepted from the server.
	MaxBody int
}

// QueueSpec describes a queue to define. An empty Disposition means
// PERMANENT.
type QueueSpec struct {
	Name        string
	Description string
	Threshold   int
	Disposition string
}

// GetOptions tunes a get. Timeout zero means do not wait.
type GetOptions struct {
	Timeout  time.Duration
	Poll     time.Duration
	Selector string
}

// QueueInfo describes one queue in a query result.
type QueueInfo struct {
	Name        string
	Description string
	Threshold   int
	Disposition string
	Size        int
	Suspended   bool
}

// Client is one authenticated session.
type Client struct {
	conn      *codec.Conn
	sessionID string
	server    string

	mu     sync.Mutex
	closed bool
}

// Dial connects to addr and authenticates.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	d := net.Dialer{Timeout: opts.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	var copts []codec.Option
	if opts.MaxBody > 0 {
		copts = append(copts, codec.WithMaxBody(opts.MaxBody))
	}
	return Handshake(ctx, codec.NewConn(nc, packet.Codec(copts...)), opts)
}

// Handshake authenticates over an established connection. The connection
// is closed when authentication fails.
func Handshake(ctx context.Context, conn *codec.Conn, opts Options) (*Client, error) {
	if opts.Client == "" {
		opts.Client = "kas-go"
	}
	if err := conn.Send(ctx, &packet.AuthRequest{User: opts.User, Password: opts.Password, Client: opts.Client}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send auth: %w", err)
	}
	rec, err := conn.Receive(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("receive auth: %w", err)
	}
	resp, ok := rec.(*packet.AuthResponse)
	if !ok {
		_ = conn.Close()
		return nil, fmt.Errorf("client: unexpected auth reply %T", rec)
	}
	if err := packet.Err(resp.Status, resp.Reason); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Client{conn: conn, sessionID: resp.SessionID, server: resp.Server}, nil
}

// SessionID returns the id the server assigned to this session.
func (c *Client) SessionID() string { return c.sessionID }

// Server returns the server name reported at login.
func (c *Client) Server() string { return c.server }

// Close ends the session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// roundTrip sends req and waits for its reply. Requests are serialized so
// replies pair with requests in order.
func (c *Client) roundTrip(ctx context.Context, req codec.Record) (codec.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if err := c.conn.Send(ctx, req); err != nil {
		return nil, err
	}
	return c.conn.Receive(ctx)
}

// call performs a request answered by a plain Response.
func (c *Client) call(ctx context.Context, req codec.Record) error {
	rec, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}
	resp, ok := rec.(*packet.Response)
	if !ok {
		return fmt.Errorf("client: unexpected reply %T", rec)
	}
	return packet.Err(resp.Status, resp.Reason)
}

// Ping checks the session is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, &packet.PingRequest{})
}

// DefineQueue creates a queue.
func (c *Client) DefineQueue(ctx context.Context, spec QueueSpec) error {
	return c.call(ctx, &packet.DefineQueueRequest{
		Name:        spec.Name,
		Description: spec.Description,
		Threshold:   spec.Threshold,
		Disposition: spec.Disposition,
	})
}

// DeleteQueue removes a queue. A non-empty queue needs force.
func (c *Client) DeleteQueue(ctx context.Context, name string, force bool) error {
	return c.call(ctx, &packet.DeleteQueueRequest{Name: name, Force: force})
}

// Put sends m to queue.
func (c *Client) Put(ctx context.Context, queue string, m *message.Message) error {
	return c.call(ctx, &packet.PutRequest{Queue: queue, Message: m})
}

// Get retrieves the next message from queue. A nil message and nil error
// mean nothing arrived within the timeout.
func (c *Client) Get(ctx context.Context, queue string, opts GetOptions) (*message.Message, error) {
	rec, err := c.roundTrip(ctx, &packet.GetRequest{
		Queue:     queue,
		TimeoutMs: opts.Timeout.Milliseconds(),
		PollMs:    opts.Poll.Milliseconds(),
		Selector:  opts.Selector,
	})
	if err != nil {
		return nil, err
	}
	resp, ok := rec.(*packet.GetResponse)
	if !ok {
		return nil, fmt.Errorf("client: unexpected reply %T", rec)
	}
	if resp.Status == packet.StatusNoMessage {
		return nil, nil
	}
	if err := packet.Err(resp.Status, resp.Reason); err != nil {
		return nil, err
	}
	return resp.Message, nil
}

// QueryQueues lists the queues matching pattern that the user may read.
func (c *Client) QueryQueues(ctx context.Context, pattern string) ([]QueueInfo, error) {
	rec, err := c.roundTrip(ctx, &packet.QueryQueuesRequest{Pattern: pattern})
	if err != nil {
		return nil, err
	}
	resp, ok := rec.(*packet.QueryQueuesResponse)
	if !ok {
		return nil, fmt.Errorf("client: unexpected reply %T", rec)
	}
	if err := packet.Err(resp.Status, resp.Reason); err != nil {
		return nil, err
	}
	out := make([]QueueInfo, 0, len(resp.Queues))
	for _, q := range resp.Queues {
		out = append(out, QueueInfo(q))
	}
	return out, nil
}

// Shutdown asks the server to stop.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.call(ctx, &packet.ShutdownRequest{})
}

// StatusOf returns the status carried by err, or StatusOK when err is nil
// and StatusInternal for transport failures.
func StatusOf(err error) packet.Status {
	if err == nil {
		return packet.StatusOK
	}
	var se *packet.StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return packet.StatusInternal
}
