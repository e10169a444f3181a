package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/maaaruch/shallweeat-bot/internal/domain"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    any         `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    domain.Kind `json:"code,omitempty"`
	Details any         `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env Envelope, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil && logger != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func success(w http.ResponseWriter, data any, logger *slog.Logger) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data}, logger)
}

func created(w http.ResponseWriter, data any, logger *slog.Logger) {
	writeJSON(w, http.StatusCreated, Envelope{Success: true, Data: data}, logger)
}

func errorResponse(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	writeJSON(w, status, Envelope{Error: message}, logger)
}

// handleError maps domain error kinds to statuses. Anything else is a 500.
func handleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var derr *domain.Error
	if errors.As(err, &derr) {
		writeJSON(w, derr.HTTPStatus(), Envelope{
			Error:   derr.Message,
			Code:    derr.Kind,
			Details: derr.Details,
		}, logger)
		return
	}

	if logger != nil {
		logger.Error("unhandled error", "error", err)
	}
	errorResponse(w, http.StatusInternalServerError, "internal server error", logger)
}
