package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/moonbridge/moonbridge/internal/camera"
	"github.com/moonbridge/moonbridge/internal/entity"
)

// handleListCameras returns the printer's webcam list.
// Query parameters: refresh=true forces a reload from Moonraker.
func (s *Server) handleListCameras(w http.ResponseWriter, r *http.Request) {
	if s.cameras == nil {
		writeUnavailable(w, "cameras unavailable")
		return
	}

	if r.URL.Query().Get("refresh") == "true" {
		if err := s.cameras.Refresh(r.Context()); err != nil {
			writePrinterError(w, "failed to refresh webcam list")
			return
		}
	}

	cams := s.cameras.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"cameras": cams,
		"count":   len(cams),
	})
}

// handleCameraSnapshot proxies a still frame from the named webcam.
func (s *Server) handleCameraSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.cameras == nil {
		writeUnavailable(w, "cameras unavailable")
		return
	}

	name := chi.URLParam(r, "name")
	if name == "" || len(name) > maxQueryParamLen {
		writeBadRequest(w, "invalid camera name")
		return
	}

	data, contentType, err := s.cameras.Snapshot(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, camera.ErrCameraNotFound):
			writeNotFound(w, "camera not found")
		case errors.Is(err, camera.ErrNoSnapshotURL):
			writeError(w, http.StatusConflict, ErrCodeConflict, "camera has no snapshot URL")
		default:
			writePrinterError(w, "snapshot fetch failed")
		}
		return
	}

	writeImage(w, data, contentType)
}

// handlePrinterThumbnail serves the embedded preview image of the file
// currently printing.
func (s *Server) handlePrinterThumbnail(w http.ResponseWriter, r *http.Request) {
	if s.cameras == nil {
		writeUnavailable(w, "cameras unavailable")
		return
	}

	filename := ""
	if e, err := s.registry.Get(r.Context(), entity.IDPrintFilename); err == nil {
		filename = e.State
	}

	data, contentType, err := s.cameras.PrintThumbnail(r.Context(), filename)
	if err != nil {
		if errors.Is(err, camera.ErrNoThumbnail) {
			writeNotFound(w, "no thumbnail available")
			return
		}
		writePrinterError(w, "thumbnail fetch failed")
		return
	}

	writeImage(w, data, contentType)
}

// writeImage writes raw image bytes with appropriate headers.
func writeImage(w http.ResponseWriter, data []byte, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(data)
}
