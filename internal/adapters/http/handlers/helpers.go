package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/longregen/memoir/internal/adapters/http/dto"
	"github.com/longregen/memoir/internal/adapters/http/middleware"
	"github.com/longregen/memoir/internal/domain"
	"github.com/longregen/memoir/internal/platform/logger"
)

const maxBodyBytes = 1024 * 1024

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, dto.NewErrorResponse(message), status)
}

// respondDomainError maps engine errors to status codes. Unexpected errors are
// logged and hidden behind a generic 500.
func respondDomainError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, domain.ErrUnauthorized.Error(), http.StatusUnauthorized)
	case errors.Is(err, domain.ErrPromptRefRequired):
		respondError(w, domain.ErrPromptRefRequired.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrPromptNotFound):
		respondError(w, domain.ErrPromptNotFound.Error(), http.StatusNotFound)
	default:
		log.Error("request failed",
			"path", r.URL.Path,
			"user_id", middleware.GetUserID(r.Context()),
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err)
		respondError(w, "internal server error", http.StatusInternalServerError)
	}
}

// decodeJSON decodes a JSON request body. An empty body decodes to the zero value.
func decodeJSON[T any](r *http.Request, w http.ResponseWriter) (*T, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}
