package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mstanton/daykeeper/internal/session"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage removes internal details from error messages
func sanitizeErrorMessage(message string) string {
	sanitized := message
	if len(sanitized) > 200 {
		sanitized = sanitized[:200] + "..."
	}
	return sanitized
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondEngineError maps session engine errors to HTTP statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	var validationErr *session.ValidationError
	var externalErr *session.ExternalError
	var invariantErr *session.InvariantViolation

	switch {
	case errors.As(err, &validationErr):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validationErr.Error())
	case errors.Is(err, session.ErrSkipLimitReached):
		respondJSONError(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, session.ErrInvalidTransition):
		respondJSONError(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &invariantErr):
		respondJSONError(w, http.StatusConflict, "Conflict", invariantErr.Error())
	case errors.As(err, &externalErr):
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", externalErr.Error())
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
}
