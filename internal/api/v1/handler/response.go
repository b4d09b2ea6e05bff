package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/logger"
	"app/internal/repository"
	"app/internal/service"
)

// successResponse and errorResponse form the envelope every JSON endpoint
// returns.
type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(successResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Success: false, Error: message})
}

// writeServiceError maps service-layer errors to HTTP statuses. Anything
// unrecognized becomes a 500 with a generic message; the cause is logged,
// never leaked.
func writeServiceError(w http.ResponseWriter, err error) {
	var usageErr *service.UsageLimitError
	var costErr *service.CostLimitError
	var speechErr *service.SpeechProviderError
	var llmErr *service.LLMProviderError

	switch {
	case errors.Is(err, service.ErrAudioFileNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrTranscriptRequired),
		errors.Is(err, repository.ErrParentRowGone):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrFileTooLarge),
		errors.Is(err, service.ErrUnsupportedType),
		errors.Is(err, service.ErrUnknownPlan):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &usageErr):
		writeError(w, http.StatusForbidden, usageErr.Message)
	case errors.As(err, &costErr):
		writeError(w, http.StatusForbidden, costErr.Message)
	case errors.As(err, &speechErr):
		writeProviderError(w, speechErr.StatusCode, "transcription service")
	case errors.As(err, &llmErr):
		writeProviderError(w, llmErr.StatusCode, "content generation service")
	default:
		log := logger.New()
		log.Error().Err(err).Msg("Unhandled service error")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeProviderError surfaces quota and billing failures from a third-party
// API with their own status so clients can distinguish them from server
// faults.
func writeProviderError(w http.ResponseWriter, upstreamStatus int, name string) {
	switch upstreamStatus {
	case http.StatusTooManyRequests:
		writeError(w, http.StatusTooManyRequests, name+" is rate limited, try again later")
	case http.StatusPaymentRequired:
		writeError(w, http.StatusPaymentRequired, name+" rejected the request due to billing")
	default:
		writeError(w, http.StatusInternalServerError, name+" is unavailable")
	}
}

// decodeJSON reads the request body once into dst. Handlers call it a single
// time and work with the decoded value from then on.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
