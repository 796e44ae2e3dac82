package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/vidtube/backend/internal/logging"
)

// apiResponse is the uniform envelope every endpoint returns. Success is
// derived from the status code so the two can never disagree.
type apiResponse struct {
	StatusCode int      `json:"statusCode"`
	Data       any      `json:"data"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	writeEnvelope(ctx, w, apiResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string, errs ...string) {
	if len(errs) == 0 {
		errs = []string{message}
	}
	writeEnvelope(ctx, w, apiResponse{
		StatusCode: status,
		Message:    message,
		Success:    false,
		Errors:     errs,
	})
}

func writeEnvelope(ctx context.Context, w http.ResponseWriter, payload apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(payload.StatusCode)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", payload.StatusCode, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case payload.StatusCode >= http.StatusInternalServerError:
		logger.Error("request failed", "status", payload.StatusCode, "message", payload.Message)
	case payload.StatusCode >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", payload.StatusCode, "message", payload.Message)
	}
}
