package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/moonbridge/moonbridge/internal/bridge"
)

// commandRequest is the body of POST /printer/commands.
type commandRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// handleGetPrinter returns printer identity and Klipper state.
func (s *Server) handleGetPrinter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := map[string]any{
		"klippy_ready": s.bridge.KlippyReady(),
		"connected":    s.printer.IsConnected(),
	}

	if info, err := s.printer.PrinterInfo(ctx); err == nil {
		resp["hostname"] = info.Hostname
		resp["software_version"] = info.SoftwareVersion
		resp["state"] = info.State
		resp["state_message"] = info.StateMessage
	}

	if info, err := s.printer.ServerInfo(ctx); err == nil {
		resp["klippy_state"] = info.KlippyState
		resp["moonraker_version"] = info.MoonrakerVersion
	}

	writeJSON(w, http.StatusOK, resp)
}

// handlePostCommand executes a printer command through the bridge,
// sharing validation and acknowledgment with the MQTT command path.
func (s *Server) handlePostCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	cmd := bridge.CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Command:    req.Command,
		Parameters: req.Parameters,
		Source:     "api",
	}

	if err := s.bridge.ExecuteCommand(r.Context(), cmd); err != nil {
		switch {
		case errors.Is(err, bridge.ErrInvalidCommand):
			writeBadRequest(w, err.Error())
		case errors.Is(err, bridge.ErrKlippyNotReady):
			writeError(w, http.StatusConflict, ErrCodeConflict, "klippy is not ready")
		default:
			writePrinterError(w, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"command_id": cmd.ID,
		"command":    cmd.Command,
		"status":     "completed",
	})
}
