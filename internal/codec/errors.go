package codec

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

var (
	// ErrCorrupted means the header magic did not match.
	ErrCorrupted = errors.New("codec: corrupted stream")
	// ErrUnknownType means the type id has no registered factory.
	ErrUnknownType = errors.New("codec: unknown type id")
	// ErrFrameTooLarge means the declared body length exceeds the limit.
	ErrFrameTooLarge = errors.New("codec: frame too large")
	// ErrMalformedBody means the body could not be decoded into its record.
	ErrMalformedBody = errors.New("codec: malformed body")
)

// ProtocolError is a fatal framing failure. The connection must be closed.
type ProtocolError struct {
	Err    error
	TypeID uint16
	Raw    [HeaderSize]byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%v (type=%d header=% x)", e.Err, e.TypeID, e.Raw[:])
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// TransportError wraps an I/O failure on the underlying stream. N counts the
// bytes of the current frame transferred before the failure.
type TransportError struct {
	Op  string
	N   int
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("codec: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline expiry.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// Partial reports whether part of a frame was transferred. A partial
// transfer leaves the stream misaligned.
func (e *TransportError) Partial() bool { return e.N > 0 }

// IsProtocol reports whether err is a fatal framing error.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsIdle reports whether err is a receive that timed out or was cancelled
// before any byte of the next frame arrived. The stream is still usable.
func IsIdle(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var te *TransportError
	return errors.As(err, &te) && te.Timeout() && !te.Partial()
}
