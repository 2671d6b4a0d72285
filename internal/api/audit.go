package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/workbench-core/internal/audit"
)

// handleListAudit returns registry changes, newest first.
//
// Query: action, printer_id, limit (max 200), offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "audit log is not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:    q.Get("action"),
		PrinterID: q.Get("printer_id"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
