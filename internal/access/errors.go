package access

import "errors"

var (
	// ErrLevelNotEnabled marks a configuration or programming fault: a level
	// was required of, or granted by, a class that does not support it.
	ErrLevelNotEnabled = errors.New("access: level not enabled for resource class")
	ErrUnknownClass    = errors.New("access: unknown resource class")
	ErrUnknownLevel    = errors.New("access: unknown access level")
	ErrBadPattern      = errors.New("access: invalid resource pattern")
)
