package backend

import (
	"errors"
)

var (
	// ErrUnknownDevice is returned when a device name is not in the registry.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrInvalidValue is returned when a request cannot be satisfied, such as capturing more frames than are available.
	ErrInvalidValue = errors.New("invalid value")
	// ErrShortCommit is returned when the hardware committed fewer frames than were transferred.
	ErrShortCommit = errors.New("short commit")
	// ErrBeginFailed is returned when the ring buffer kept refusing access although every recovery succeeded.
	ErrBeginFailed = errors.New("mmap begin failed")
	// ErrRecoveryFailed is returned when a stream could not be brought back to a running state.
	ErrRecoveryFailed = errors.New("recovery failed")
	// ErrClosed is returned when a closed stream is used.
	ErrClosed = errors.New("stream closed")
)
