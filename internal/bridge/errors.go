package bridge

import "errors"

// Sentinel errors for bridge operations.
var (
	// ErrNotStarted is returned for operations before Start().
	ErrNotStarted = errors.New("bridge: not started")

	// ErrInvalidCommand is returned for unknown command names.
	ErrInvalidCommand = errors.New("bridge: invalid command")

	// ErrKlippyNotReady is returned for printer operations while
	// Klipper is not in the ready state.
	ErrKlippyNotReady = errors.New("bridge: klippy not ready")
)
