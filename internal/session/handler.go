package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/shyifrah/kas/internal/access"
	"github.com/shyifrah/kas/internal/codec"
	"github.com/shyifrah/kas/internal/packet"
	"github.com/shyifrah/kas/internal/queue"
	"github.com/shyifrah/kas/internal/selector"
	logpkg "github.com/shyifrah/kas/pkg/log"
)

// Authenticator verifies user credentials.
type Authenticator interface {
	Authenticate(user, password string) error
}

// Recorder receives session level measurements.
type Recorder interface {
	SessionOpened()
	SessionClosed()
	RequestHandled(op, status string, elapsed time.Duration)
	AccessDenied(class string)
	ProtocolError()
}

type nopRecorder struct{}

func (nopRecorder) SessionOpened()                               {}
func (nopRecorder) SessionClosed()                               {}
func (nopRecorder) RequestHandled(string, string, time.Duration) {}
func (nopRecorder) AccessDenied(string)                          {}
func (nopRecorder) ProtocolError()                               {}

// Options configures a Handler.
type Options struct {
	Queues *queue.Registry
	Access *access.Manager
	Auth   Authenticator
	// ServerName is the SERVER class resource checked for shutdown.
	ServerName string
	// AuthTimeout bounds the wait for the first packet.
	AuthTimeout time.Duration
	// IdleTimeout ends a session after this long without a request. Zero
	// disables it.
	IdleTimeout time.Duration
	// MaxGetWait caps the timeout a client may ask for on get.
	MaxGetWait time.Duration
	Selectors  *selector.Cache
	Metrics    Recorder
	Logger     logpkg.Logger
	// Shutdown is invoked after an authorized shutdown request was answered.
	Shutdown func()
}

// Handler serves sessions. One Handler is shared by all connections.
type Handler struct {
	opts   Options
	logger logpkg.Logger
}

// NewHandler returns a handler with defaults applied.
func NewHandler(opts Options) *Handler {
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	if opts.Selectors == nil {
		opts.Selectors = selector.NewCache(0)
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 10 * time.Second
	}
	if opts.MaxGetWait <= 0 {
		opts.MaxGetWait = 5 * time.Minute
	}
	if opts.ServerName == "" {
		opts.ServerName = "KAS"
	}
	return &Handler{opts: opts, logger: opts.Logger.WithComponent("session")}
}

// session is the per-connection state.
type session struct {
	id     string
	user   string
	conn   *codec.Conn
	logger logpkg.Logger
}

// Serve runs a session until it ends. The connection is closed on return
// and temporary queues the session defined are dropped.
func (h *Handler) Serve(ctx context.Context, conn *codec.Conn) {
	s := &session{id: uuid.NewString(), conn: conn}
	s.logger = h.logger.With(logpkg.Str(logpkg.SessionIDKey, s.id), logpkg.Str("remote", conn.RemoteAddr().String()))
	h.opts.Metrics.SessionOpened()
	defer func() {
		_ = conn.Close()
		if n := h.opts.Queues.DropOwned(s.id); n > 0 {
			s.logger.Info("dropped temporary queues", logpkg.Int("count", n))
		}
		h.opts.Metrics.SessionClosed()
		s.logger.Debug("session closed")
	}()

	if !h.authenticate(ctx, s) {
		return
	}
	s.logger = s.logger.With(logpkg.Str("user", s.user))
	s.logger.Info("session opened")

	for {
		rec, err := h.receive(ctx, s)
		if err != nil {
			h.logReceiveError(s, err)
			return
		}
		if rec == nil {
			s.logger.Info("session idle timeout", logpkg.Duration("idle", h.opts.IdleTimeout))
			return
		}
		start := time.Now()
		op, resp, after := h.dispatch(ctx, s, rec)
		if err := conn.Send(ctx, resp); err != nil {
			s.logger.Warn("failed to send response", logpkg.Str("op", op), logpkg.Err(err))
			return
		}
		h.opts.Metrics.RequestHandled(op, responseStatus(resp).String(), time.Since(start))
		if after != nil {
			after()
		}
	}
}

func (h *Handler) receive(ctx context.Context, s *session) (codec.Record, error) {
	if h.opts.IdleTimeout > 0 {
		return s.conn.ReceiveTimeout(ctx, h.opts.IdleTimeout)
	}
	return s.conn.Receive(ctx)
}

func (h *Handler) logReceiveError(s *session, err error) {
	switch {
	case errors.Is(err, io.EOF):
		s.logger.Debug("client closed connection")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Debug("session cancelled")
	case codec.IsProtocol(err):
		h.opts.Metrics.ProtocolError()
		s.logger.Warn("protocol error, closing session", logpkg.Err(err))
	default:
		s.logger.Warn("transport error, closing session", logpkg.Err(err))
	}
}

func (h *Handler) authenticate(ctx context.Context, s *session) bool {
	rec, err := s.conn.ReceiveTimeout(ctx, h.opts.AuthTimeout)
	if err != nil {
		h.logReceiveError(s, err)
		return false
	}
	if rec == nil {
		s.logger.Info("no authentication before timeout")
		return false
	}
	req, ok := rec.(*packet.AuthRequest)
	if !ok {
		s.logger.Warn("first packet was not an auth request", logpkg.Int("type", int(rec.TypeID())))
		_ = s.conn.Send(ctx, &packet.AuthResponse{Status: packet.StatusUnauthenticated, Reason: "authenticate first"})
		return false
	}
	if h.opts.Auth == nil || h.opts.Auth.Authenticate(req.User, req.Password) != nil {
		s.logger.Warn("authentication failed", logpkg.Str("user", req.User), logpkg.Str("client", req.Client))
		_ = s.conn.Send(ctx, &packet.AuthResponse{Status: packet.StatusUnauthenticated, Reason: "bad credentials"})
		return false
	}
	s.user = req.User
	resp := &packet.AuthResponse{Status: packet.StatusOK, SessionID: s.id, Server: h.opts.ServerName}
	if err := s.conn.Send(ctx, resp); err != nil {
		s.logger.Warn("failed to send auth response", logpkg.Err(err))
		return false
	}
	return true
}

// authorize returns nil when s.user holds required on resource.
func (h *Handler) authorize(s *session, class access.ClassName, resource string, required access.Level) error {
	dec, err := h.opts.Access.CheckAccess(class, resource, s.user, required)
	if err != nil {
		s.logger.Error("access check misconfigured",
			logpkg.Str("class", string(class)), logpkg.Str("resource", resource),
			logpkg.Str("required", required.String()), logpkg.Err(err))
		return err
	}
	if dec != access.Granted {
		h.opts.Metrics.AccessDenied(string(class))
		s.logger.Info("access denied",
			logpkg.Str("class", string(class)), logpkg.Str("resource", resource), logpkg.Str("required", required.String()))
		return fmt.Errorf("%w: %s %s requires %s", errDenied, class, resource, required)
	}
	return nil
}

func responseStatus(r codec.Record) packet.Status {
	switch v := r.(type) {
	case *packet.Response:
		return v.Status
	case *packet.GetResponse:
		return v.Status
	case *packet.QueryQueuesResponse:
		return v.Status
	case *packet.AuthResponse:
		return v.Status
	}
	return packet.StatusInternal
}
