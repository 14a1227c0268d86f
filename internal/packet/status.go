package packet

import "fmt"

// Status is the outcome code carried by every response.
type Status uint8

const (
	StatusOK Status = iota
	StatusDenied
	StatusNotFound
	StatusAlreadyExists
	StatusNotEmpty
	StatusSuspended
	StatusNoMessage
	StatusMisconfigured
	StatusBadRequest
	StatusUnauthenticated
	StatusInternal
)

var statusNames = [...]string{
	StatusOK:              "OK",
	StatusDenied:          "DENIED",
	StatusNotFound:        "NOT_FOUND",
	StatusAlreadyExists:   "ALREADY_EXISTS",
	StatusNotEmpty:        "NOT_EMPTY",
	StatusSuspended:       "SUSPENDED",
	StatusNoMessage:       "NO_MESSAGE",
	StatusMisconfigured:   "MISCONFIGURED",
	StatusBadRequest:      "BAD_REQUEST",
	StatusUnauthenticated: "UNAUTHENTICATED",
	StatusInternal:        "INTERNAL",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// StatusError is a non-OK response seen from the client side.
type StatusError struct {
	Status Status
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason == "" {
		return e.Status.String()
	}
	return e.Status.String() + ": " + e.Reason
}

// Err returns nil for OK and a *StatusError otherwise.
func Err(s Status, reason string) error {
	if s == StatusOK {
		return nil
	}
	return &StatusError{Status: s, Reason: reason}
}
