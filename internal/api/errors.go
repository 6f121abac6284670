package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/trustfeed/internal/model"
	"github.com/sells-group/trustfeed/internal/pipeline"
	"github.com/sells-group/trustfeed/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidCandidate):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrUnknownCandidate), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrNotVerified),
		errors.Is(err, pipeline.ErrInFlight),
		errors.Is(err, pipeline.ErrStale),
		errors.Is(err, pipeline.ErrDuplicateTitle):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrBelowThreshold):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrSourceUnavailable), errors.Is(err, model.ErrVerificationFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}
