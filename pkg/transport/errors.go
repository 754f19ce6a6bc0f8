package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/voxgate/voxgate/pkg/api"
)

// StatusForError maps a structured API error to an HTTP status code.
func StatusForError(apiErr *api.APIError) int {
	switch apiErr.Type {
	case api.ErrorTypeBadRequest:
		return http.StatusBadRequest
	case api.ErrorTypeUnauthenticated, api.ErrorTypeTokenExpired, api.ErrorTypeTokenMalformed:
		return http.StatusUnauthorized
	case api.ErrorTypeUnknownEngine:
		return http.StatusNotFound
	case api.ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case api.ErrorTypeBackendUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON serializes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// WriteError serializes an API error as the standard error envelope,
// choosing the HTTP status from the error type.
func WriteError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteJSON(w, StatusForError(apiErr), apiErr.Envelope())
}
