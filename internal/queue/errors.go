package queue

import "errors"

var (
	ErrNotFound      = errors.New("queue: not found")
	ErrAlreadyExists = errors.New("queue: already exists")
	ErrNotEmpty      = errors.New("queue: not empty")
	ErrSuspended     = errors.New("queue: suspended")
	ErrDeleted       = errors.New("queue: deleted")
	ErrInvalidName   = errors.New("queue: invalid name")
)
