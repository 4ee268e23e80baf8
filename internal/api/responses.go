// Package api serves the pipeline status API: the environment, the stage
// artifacts as STAC collections and items, background run state and
// metrics.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	RequestID   string `json:"request_id,omitempty"`
}

// Error codes.
const (
	ErrCodeBadRequest       = "BadRequest"
	ErrCodeNotFound         = "NotFound"
	ErrCodeInvalidParameter = "InvalidParameterValue"
	ErrCodeServerError      = "ServerError"
	ErrCodeInventory        = "InventoryUnavailable"
)

// WriteJSON writes a JSON response with the given status code and value.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return writeBody(w, status, "application/json", v)
}

// WriteGeoJSON writes a GeoJSON response with the given status code and value.
// GeoJSON responses use the application/geo+json media type.
func WriteGeoJSON(w http.ResponseWriter, status int, v any) error {
	return writeBody(w, status, "application/geo+json", v)
}

func writeBody(w http.ResponseWriter, status int, mediaType string, v any) error {
	w.Header().Set("Content-Type", mediaType)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response",
			slog.String("content_type", mediaType),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, ErrorResponse{Code: code, Description: message})
}

func writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response",
			slog.String("error", err.Error()),
		)
	}
}

// WriteBadRequest writes a 400 Bad Request error response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// WriteNotFound writes a 404 Not Found error response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// WriteInvalidParameter writes a 400 Bad Request error for invalid parameters.
func WriteInvalidParameter(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeInvalidParameter, message)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ErrCodeServerError, message)
}

// WriteInternalErrorWithRequestID writes a 500 response carrying the request ID.
func WriteInternalErrorWithRequestID(w http.ResponseWriter, message, requestID string) {
	writeError(w, http.StatusInternalServerError, ErrorResponse{
		Code:        ErrCodeServerError,
		Description: message,
		RequestID:   requestID,
	})
}
