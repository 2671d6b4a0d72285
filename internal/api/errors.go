package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/workbench-core/internal/printer"
	"github.com/nerrad567/workbench-core/internal/probe"
)

// Error represents a structured error response.
// Probe is set when the request failed because the printer did not answer.
type Error struct {
	Status  int           `json:"status"`
	Code    string        `json:"code"`
	Message string        `json:"error"`
	Probe   *probe.Result `json:"probe,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeUnreachable    = "unreachable"
	ErrCodeNotConfigured  = "not_configured"
	ErrCodeServiceFailure = "service_unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps printer errors to HTTP responses. Only errors that
// match no sentinel are treated as server faults and logged.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	var unreachable *printer.UnreachableError
	switch {
	case errors.As(err, &unreachable):
		res := unreachable.Result
		writeJSON(w, http.StatusBadRequest, Error{
			Status:  http.StatusBadRequest,
			Code:    ErrCodeUnreachable,
			Message: "printer did not respond",
			Probe:   &res,
		})
	case errors.Is(err, printer.ErrInvalidPrinter):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, printer.ErrPrinterNotFound):
		writeNotFound(w, notFoundMsg)
	case errors.Is(err, printer.ErrPrinterExists), errors.Is(err, printer.ErrConflict):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		s.logger.Error("printer request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "internal server error")
	}
}
