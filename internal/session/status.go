package session

import (
	"errors"

	"github.com/shyifrah/kas/internal/access"
	"github.com/shyifrah/kas/internal/message"
	"github.com/shyifrah/kas/internal/packet"
	"github.com/shyifrah/kas/internal/queue"
)

var (
	errDenied     = errors.New("access denied")
	errBadRequest = errors.New("bad request")
)

// statusFor maps an operation error to the status sent to the client.
func statusFor(err error) packet.Status {
	switch {
	case err == nil:
		return packet.StatusOK
	case errors.Is(err, errDenied):
		return packet.StatusDenied
	case errors.Is(err, access.ErrLevelNotEnabled), errors.Is(err, access.ErrUnknownClass):
		return packet.StatusMisconfigured
	case errors.Is(err, queue.ErrNotFound):
		return packet.StatusNotFound
	case errors.Is(err, queue.ErrAlreadyExists):
		return packet.StatusAlreadyExists
	case errors.Is(err, queue.ErrNotEmpty):
		return packet.StatusNotEmpty
	case errors.Is(err, queue.ErrSuspended):
		return packet.StatusSuspended
	case errors.Is(err, errBadRequest), errors.Is(err, queue.ErrInvalidName), errors.Is(err, message.ErrInvalid):
		return packet.StatusBadRequest
	}
	return packet.StatusInternal
}

// reasonFor returns the client-facing reason. Internal failures are not
// described to the peer.
func reasonFor(err error) string {
	if err == nil {
		return ""
	}
	if statusFor(err) == packet.StatusInternal {
		return "internal error"
	}
	return err.Error()
}
