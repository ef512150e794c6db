package bus

import "errors"

// Bus errors.
var (
	// ErrInvalidArgument is returned for out-of-range addresses, offsets or lengths.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfMemory is returned when a store does not fit the host's memory budget.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrDuplicateRegistration is returned when a slot or name is already taken.
	ErrDuplicateRegistration = errors.New("duplicate registration")

	// ErrDetached is returned for transfers on an instance that has been detached.
	ErrDetached = errors.New("bus instance detached")
)
