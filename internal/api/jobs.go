package api

import "net/http"

// handleListJobs returns recent print jobs, newest first.
// Query parameters: limit (default 50, max 500).
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeUnavailable(w, "job history unavailable")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	jobs, err := s.jobs.List(r.Context(), limit)
	if err != nil {
		writeInternalError(w, "failed to list jobs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
