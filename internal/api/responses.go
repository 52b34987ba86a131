package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

// envelope is the response body shape shared by every route.
type envelope struct {
	Status  string `json:"status"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	Results *int   `json:"results,omitempty"`
	Data    any    `json:"data,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func respondData(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusOK, envelope{Status: statusSuccess, Data: data})
}

func respondList(w http.ResponseWriter, n int, data any) {
	respondJSON(w, http.StatusOK, envelope{Status: statusSuccess, Results: &n, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{Status: statusSuccess, Message: message})
}

// respondError writes the failure envelope for err. 4xx responses are "fail", 5xx "error".
// Server-side failures are logged with the full error; the client only sees SafeMessage.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)
	traceID := TraceIDFromContext(r.Context())

	body := envelope{
		Status:  statusFail,
		Kind:    errorKind(err),
		Message: SafeMessage(err),
		TraceID: traceID,
	}
	if status == http.StatusBadRequest {
		body.Message = err.Error()
	}

	attrs := []any{
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
		slog.Int("status_code", status),
		slog.String("kind", body.Kind),
		slog.String("error", err.Error()),
	}
	switch {
	case status >= 500:
		body.Status = statusError
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
			h.log.Warn("request failed", attrs...)
		} else {
			h.log.Error("request failed", attrs...)
		}
	default:
		h.log.Debug("request rejected", attrs...)
	}

	respondJSON(w, status, body)
}

func invalidRequest(err error) error {
	return fmt.Errorf("%w: %s", errInvalidRequest, err.Error())
}
