package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"helpdesk/internal/domain"
)

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// SuccessResponse wraps a successful payload.
type SuccessResponse struct {
	Data any `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(data)
}

func writeBadRequest(w http.ResponseWriter, message string, details map[string]string) error {
	return writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: message, Details: details})
}

// writeServiceError maps the help desk error taxonomy to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, code := http.StatusInternalServerError, "internal_error"
	message := "internal server error"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status, code, message = http.StatusBadRequest, "bad_request", err.Error()
	case errors.Is(err, domain.ErrCancelled), errors.Is(err, context.Canceled):
		status, code, message = http.StatusServiceUnavailable, "cancelled", "request cancelled"
	case errors.Is(err, domain.ErrGeneration):
		status, code, message = http.StatusBadGateway, "generation_failed", "language model call failed"
	}
	if status >= 500 {
		logger.Warn("answer failed", zap.Int("status", status), zap.Error(err))
	}
	if werr := writeJSON(w, status, ErrorResponse{Error: code, Message: message}); werr != nil {
		logger.Error("failed to write error response", zap.Error(werr))
	}
}
