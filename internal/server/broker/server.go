package broker

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/shyifrah/kas/internal/codec"
	logpkg "github.com/shyifrah/kas/pkg/log"
)

// SessionHandler serves one framed connection until it ends.
type SessionHandler interface {
	Serve(ctx context.Context, conn *codec.Conn)
}

// Server owns the TCP listener and the live sessions.
type Server struct {
	handler SessionHandler
	codec   *codec.Codec
	logger  logpkg.Logger

	mu  sync.Mutex
	lis net.Listener
	wg  sync.WaitGroup
}

// New constructs a broker server.
func New(h SessionHandler, c *codec.Codec, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	return &Server{handler: h, codec: c, logger: logger.WithComponent("broker")}
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done or l fails. It returns
// after every session has ended.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	s.lis = l
	s.mu.Unlock()

	sctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.wg.Wait()
	}()
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	s.logger.Info("listening", logpkg.Str("addr", l.Addr().String()))
	var backoff time.Duration
	for {
		nc, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("listener closed", logpkg.Str("addr", l.Addr().String()))
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				s.logger.Warn("accept failed, retrying", logpkg.Err(err), logpkg.Duration("backoff", backoff))
				select {
				case <-time.After(backoff):
					continue
				case <-ctx.Done():
					return nil
				}
			}
			return err
		}
		backoff = 0
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handler.Serve(sctx, codec.NewConn(nc, s.codec))
		}()
	}
}

// Addr returns the bound address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Close stops accepting. Live sessions end when the serve context is done.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
