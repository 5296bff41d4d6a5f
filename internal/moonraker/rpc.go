package moonraker

import "encoding/json"

// jsonrpcVersion is the protocol version sent with every request.
const jsonrpcVersion = "2.0"

// rpcRequest is a single outbound JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      uint64 `json:"id"`
}

// rpcEnvelope is the inbound frame shape. Moonraker sends two kinds of
// frames over the same socket:
//
//   - responses: carry an "id" matching a request, plus "result" or "error"
//   - notifications: carry a "method" and optional "params", no "id"
//
// Both decode into this envelope; the presence of Method distinguishes them.
type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// isNotification reports whether the frame is a server notification
// rather than a call response.
func (e *rpcEnvelope) isNotification() bool {
	return e.Method != ""
}

// Notification is a server-initiated message delivered to the
// notification callback.
type Notification struct {
	// Method is the notification name, e.g. "notify_status_update".
	Method string

	// Params is the raw parameter array. Moonraker wraps notification
	// payloads in a JSON array; use the Parse* helpers to decode.
	Params json.RawMessage
}

// Notification method names sent by Moonraker.
const (
	NotifyStatusUpdate       = "notify_status_update"
	NotifyKlippyReady        = "notify_klippy_ready"
	NotifyKlippyShutdown     = "notify_klippy_shutdown"
	NotifyKlippyDisconnected = "notify_klippy_disconnected"
	NotifyHistoryChanged     = "notify_history_changed"
	NotifyGCodeResponse      = "notify_gcode_response"
)

// ParseStatusUpdate decodes the params of a notify_status_update
// notification. The payload is a two-element array: a map of object
// name to changed fields, followed by the Klipper event time.
//
// Returns:
//   - status: changed objects keyed by printer object name
//   - eventtime: Klipper's monotonic event timestamp
//   - error: if the params do not match the expected shape
func ParseStatusUpdate(params json.RawMessage) (status map[string]json.RawMessage, eventtime float64, err error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(params, &parts); err != nil {
		return nil, 0, err
	}

	if len(parts) > 0 {
		if err := json.Unmarshal(parts[0], &status); err != nil {
			return nil, 0, err
		}
	}
	if len(parts) > 1 {
		if err := json.Unmarshal(parts[1], &eventtime); err != nil {
			return nil, 0, err
		}
	}

	return status, eventtime, nil
}

// ParseHistoryChanged decodes the params of a notify_history_changed
// notification into its action and job payload.
func ParseHistoryChanged(params json.RawMessage) (*HistoryEvent, error) {
	var parts []HistoryEvent
	if err := json.Unmarshal(params, &parts); err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, ErrCallFailed
	}
	return &parts[0], nil
}
