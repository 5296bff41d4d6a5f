package moonraker

import (
	"context"
	"encoding/json"
	"fmt"
)

// PrinterInfo retrieves Klipper host information (printer.info).
func (c *Client) PrinterInfo(ctx context.Context) (*PrinterInfo, error) {
	result, err := c.Call(ctx, "printer.info", nil)
	if err != nil {
		return nil, err
	}

	var info PrinterInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, fmt.Errorf("%w: printer.info: %w", ErrCallFailed, err)
	}
	return &info, nil
}

// ServerInfo retrieves Moonraker process information (server.info),
// including the Klippy connection state.
func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	result, err := c.Call(ctx, "server.info", nil)
	if err != nil {
		return nil, err
	}

	var info ServerInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, fmt.Errorf("%w: server.info: %w", ErrCallFailed, err)
	}
	return &info, nil
}

// QueryObjects performs a one-shot printer.objects.query.
//
// The objects map keys are printer object names; a nil value slice
// requests all fields of that object, a non-nil slice selects fields.
func (c *Client) QueryObjects(ctx context.Context, objects map[string][]string) (*ObjectsQueryResult, error) {
	return c.objectsCall(ctx, "printer.objects.query", objects)
}

// SubscribeObjects registers a printer.objects.subscribe subscription.
//
// Moonraker replaces any previous subscription on this connection, so
// callers pass the full object set every time. The response carries the
// current state of all subscribed objects, the same shape as a query.
// Subsequent changes arrive as notify_status_update notifications.
func (c *Client) SubscribeObjects(ctx context.Context, objects map[string][]string) (*ObjectsQueryResult, error) {
	return c.objectsCall(ctx, "printer.objects.subscribe", objects)
}

func (c *Client) objectsCall(ctx context.Context, method string, objects map[string][]string) (*ObjectsQueryResult, error) {
	params := map[string]any{"objects": objects}

	result, err := c.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}

	var query ObjectsQueryResult
	if err := json.Unmarshal(result, &query); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCallFailed, method, err)
	}
	return &query, nil
}

// FileMetadata retrieves slicer metadata for a gcode file
// (server.files.metadata), including thumbnails.
func (c *Client) FileMetadata(ctx context.Context, filename string) (*GCodeMetadata, error) {
	params := map[string]any{"filename": filename}

	result, err := c.Call(ctx, "server.files.metadata", params)
	if err != nil {
		return nil, err
	}

	var meta GCodeMetadata
	if err := json.Unmarshal(result, &meta); err != nil {
		return nil, fmt.Errorf("%w: server.files.metadata: %w", ErrCallFailed, err)
	}
	return &meta, nil
}

// ListWebcams retrieves the configured webcams (server.webcams.list).
func (c *Client) ListWebcams(ctx context.Context) ([]Webcam, error) {
	result, err := c.Call(ctx, "server.webcams.list", nil)
	if err != nil {
		return nil, err
	}

	var list webcamsListResult
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, fmt.Errorf("%w: server.webcams.list: %w", ErrCallFailed, err)
	}
	return list.Webcams, nil
}

// ListHistory retrieves recent print jobs from the history component
// (server.history.list), newest first.
func (c *Client) ListHistory(ctx context.Context, limit int) ([]HistoryJob, error) {
	if limit <= 0 {
		limit = 50
	}
	params := map[string]any{
		"limit": limit,
		"order": "desc",
	}

	result, err := c.Call(ctx, "server.history.list", params)
	if err != nil {
		return nil, err
	}

	var list historyListResult
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, fmt.Errorf("%w: server.history.list: %w", ErrCallFailed, err)
	}
	return list.Jobs, nil
}

// PausePrint pauses the active print (printer.print.pause).
func (c *Client) PausePrint(ctx context.Context) error {
	_, err := c.Call(ctx, "printer.print.pause", nil)
	return err
}

// ResumePrint resumes a paused print (printer.print.resume).
func (c *Client) ResumePrint(ctx context.Context) error {
	_, err := c.Call(ctx, "printer.print.resume", nil)
	return err
}

// CancelPrint cancels the active print (printer.print.cancel).
func (c *Client) CancelPrint(ctx context.Context) error {
	_, err := c.Call(ctx, "printer.print.cancel", nil)
	return err
}

// EmergencyStop halts the printer immediately (printer.emergency_stop).
// Klipper enters the shutdown state and requires a firmware restart
// before accepting further commands.
func (c *Client) EmergencyStop(ctx context.Context) error {
	_, err := c.Call(ctx, "printer.emergency_stop", nil)
	return err
}

// FirmwareRestart restarts the Klipper firmware (printer.firmware_restart),
// recovering from shutdown state.
func (c *Client) FirmwareRestart(ctx context.Context) error {
	_, err := c.Call(ctx, "printer.firmware_restart", nil)
	return err
}

// RunGCode executes a gcode script (printer.gcode.script). The call
// does not return until Klipper has processed the script, so long
// macros need a generous context deadline.
func (c *Client) RunGCode(ctx context.Context, script string) error {
	if script == "" {
		return fmt.Errorf("%w: empty gcode script", ErrCallFailed)
	}
	params := map[string]any{"script": script}
	_, err := c.Call(ctx, "printer.gcode.script", params)
	return err
}
