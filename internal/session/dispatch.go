package session

import (
	"context"
	"fmt"
	"time"

	"github.com/shyifrah/kas/internal/access"
	"github.com/shyifrah/kas/internal/codec"
	"github.com/shyifrah/kas/internal/packet"
	"github.com/shyifrah/kas/internal/queue"
	logpkg "github.com/shyifrah/kas/pkg/log"
)

// Command resources checked in the COMMAND class.
const (
	CommandDefine   = "DEFINE"
	CommandDelete   = "DELETE"
	CommandQuery    = "QUERY"
	CommandShutdown = "SHUTDOWN"
)

// dispatch runs one request and builds its response. after, when set, runs
// once the response has been sent.
func (h *Handler) dispatch(ctx context.Context, s *session, rec codec.Record) (op string, resp codec.Record, after func()) {
	switch req := rec.(type) {
	case *packet.DefineQueueRequest:
		return "define", respond(h.define(s, req)), nil
	case *packet.DeleteQueueRequest:
		return "delete", respond(h.deleteQueue(s, req)), nil
	case *packet.PutRequest:
		return "put", respond(h.put(s, req)), nil
	case *packet.GetRequest:
		return "get", h.get(ctx, s, req), nil
	case *packet.QueryQueuesRequest:
		return "query", h.query(s, req), nil
	case *packet.ShutdownRequest:
		err := h.shutdown(s)
		if err == nil && h.opts.Shutdown != nil {
			after = h.opts.Shutdown
		}
		return "shutdown", respond(err), after
	case *packet.PingRequest:
		return "ping", respond(nil), nil
	case *packet.AuthRequest:
		return "auth", respond(fmt.Errorf("%w: already authenticated", errBadRequest)), nil
	}
	return "unknown", respond(fmt.Errorf("%w: unexpected packet type %d", errBadRequest, rec.TypeID())), nil
}

func respond(err error) *packet.Response {
	return &packet.Response{Status: statusFor(err), Reason: reasonFor(err)}
}

func (h *Handler) define(s *session, req *packet.DefineQueueRequest) error {
	if err := h.authorize(s, access.ClassCommand, CommandDefine, access.Execute); err != nil {
		return err
	}
	name, err := queue.NormalizeName(req.Name)
	if err != nil {
		return err
	}
	if err := h.authorize(s, access.ClassQueue, name, access.Alter); err != nil {
		return err
	}
	disp, err := queue.ParseDisposition(req.Disposition)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	_, err = h.opts.Queues.Define(queue.Definition{
		Name:        name,
		Description: req.Description,
		Threshold:   req.Threshold,
		Disposition: disp,
		Owner:       s.id,
	})
	return err
}

func (h *Handler) deleteQueue(s *session, req *packet.DeleteQueueRequest) error {
	if err := h.authorize(s, access.ClassCommand, CommandDelete, access.Execute); err != nil {
		return err
	}
	name, err := queue.NormalizeName(req.Name)
	if err != nil {
		return err
	}
	if err := h.authorize(s, access.ClassQueue, name, access.Alter); err != nil {
		return err
	}
	return h.opts.Queues.Delete(name, req.Force)
}

func (h *Handler) put(s *session, req *packet.PutRequest) error {
	name, err := queue.NormalizeName(req.Queue)
	if err != nil {
		return err
	}
	if err := h.authorize(s, access.ClassQueue, name, access.Write); err != nil {
		return err
	}
	if req.Message == nil {
		return fmt.Errorf("%w: put without message", errBadRequest)
	}
	return h.opts.Queues.Put(name, req.Message)
}

func (h *Handler) get(ctx context.Context, s *session, req *packet.GetRequest) *packet.GetResponse {
	fail := func(err error) *packet.GetResponse {
		return &packet.GetResponse{Status: statusFor(err), Reason: reasonFor(err)}
	}
	name, err := queue.NormalizeName(req.Queue)
	if err != nil {
		return fail(err)
	}
	if err := h.authorize(s, access.ClassQueue, name, access.Read); err != nil {
		return fail(err)
	}
	sel, err := h.opts.Selectors.Get(req.Selector)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", errBadRequest, err))
	}
	timeout := capMillis(req.TimeoutMs, h.opts.MaxGetWait)
	poll := capMillis(req.PollMs, h.opts.MaxGetWait)
	m, err := h.opts.Queues.Get(ctx, name, timeout, poll, sel.Matcher())
	if err != nil {
		return fail(err)
	}
	if m == nil {
		return &packet.GetResponse{Status: packet.StatusNoMessage}
	}
	return &packet.GetResponse{Status: packet.StatusOK, Message: m}
}

func (h *Handler) query(s *session, req *packet.QueryQueuesRequest) *packet.QueryQueuesResponse {
	fail := func(err error) *packet.QueryQueuesResponse {
		return &packet.QueryQueuesResponse{Status: statusFor(err), Reason: reasonFor(err)}
	}
	if err := h.authorize(s, access.ClassCommand, CommandQuery, access.Execute); err != nil {
		return fail(err)
	}
	infos, err := h.opts.Queues.Query(req.Pattern)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", errBadRequest, err))
	}
	out := make([]packet.QueueInfo, 0, len(infos))
	for _, qi := range infos {
		dec, err := h.opts.Access.CheckAccess(access.ClassQueue, qi.Name, s.user, access.Read)
		if err != nil || dec != access.Granted {
			continue
		}
		out = append(out, packet.QueueInfo{
			Name:        qi.Name,
			Description: qi.Description,
			Threshold:   qi.Threshold,
			Disposition: qi.Disposition.String(),
			Size:        qi.Size,
			Suspended:   qi.State == queue.Suspended,
		})
	}
	return &packet.QueryQueuesResponse{Status: packet.StatusOK, Queues: out}
}

func (h *Handler) shutdown(s *session) error {
	if err := h.authorize(s, access.ClassCommand, CommandShutdown, access.Execute); err != nil {
		return err
	}
	if err := h.authorize(s, access.ClassServer, h.opts.ServerName, access.Alter); err != nil {
		return err
	}
	s.logger.Warn("shutdown requested by client", logpkg.Str("server", h.opts.ServerName))
	return nil
}

// capMillis converts a client supplied millisecond count to a duration no
// larger than limit. Non-positive counts yield zero.
func capMillis(ms int64, limit time.Duration) time.Duration {
	switch {
	case ms <= 0:
		return 0
	case ms >= limit.Milliseconds():
		return limit
	}
	return time.Duration(ms) * time.Millisecond
}
