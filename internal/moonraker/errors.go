package moonraker

import (
	"errors"
	"fmt"
)

// Sentinel errors for Moonraker client operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("moonraker: not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("moonraker: connection failed")

	// ErrCallFailed is returned when a JSON-RPC call cannot be sent or completed.
	ErrCallFailed = errors.New("moonraker: call failed")

	// ErrConnectionLost is used to fail pending calls when the connection drops.
	ErrConnectionLost = errors.New("moonraker: connection lost")

	// ErrClosed is returned when the client has been closed.
	ErrClosed = errors.New("moonraker: client closed")

	// ErrKlippyNotReady is returned for printer operations while Klipper
	// is in shutdown, startup or error state.
	ErrKlippyNotReady = errors.New("moonraker: klippy not ready")
)

// RPCError represents an error object returned by the Moonraker server
// in a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("moonraker: rpc error %d: %s", e.Code, e.Message)
}
