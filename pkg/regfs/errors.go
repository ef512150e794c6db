package regfs

import "errors"

// Registry errors.
var (
	// ErrUnsupportedDevice is returned when a client name is not in the
	// driver's device ID table.
	ErrUnsupportedDevice = errors.New("unsupported device")

	// ErrClientDetached is returned for accessor calls after the client is gone.
	ErrClientDetached = errors.New("client detached")

	// ErrNotFound is returned when a path names no directory or register.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPath is returned for malformed accessor paths.
	ErrInvalidPath = errors.New("invalid accessor path")
)
