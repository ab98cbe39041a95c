package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	app_errors "docdash/internal/errors"
)

// Shared DTOs and helpers for consistent HTTP responses.

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error" example:"The requested resource was not found."`
}

// StatusResponse acknowledges operations that return no resource.
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// TitleRequest creates or renames a conversation.
type TitleRequest struct {
	Title string `json:"title" validate:"max=100" example:"Quarterly report"`
}

// MessageRequest carries a user prompt.
type MessageRequest struct {
	Content string `json:"content" validate:"required,max=32000" example:"Summarize this document"`
}

// respondWithError maps service errors to HTTP status codes. Validation
// messages are passed through; everything else gets a generic message and
// the detail is only logged.
func respondWithError(w http.ResponseWriter, err error) {
	var statusCode int
	var message string

	switch {
	case errors.Is(err, app_errors.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "The requested resource was not found."
	case errors.Is(err, app_errors.ErrValidation):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, app_errors.ErrConflict):
		statusCode = http.StatusConflict
		message = "A conflict occurred with the current state of the resource."
	case errors.Is(err, app_errors.ErrPermission):
		statusCode = http.StatusForbidden
		message = "You do not have permission to perform this action."
	case errors.Is(err, app_errors.ErrUpstream):
		statusCode = http.StatusBadGateway
		message = "The model provider is unavailable. Please try again later."
	default:
		statusCode = http.StatusInternalServerError
		message = "An unexpected internal server error occurred."
	}

	slog.Warn("Responding with error", "status_code", statusCode, "client_message", message, "internal_error", err)

	respondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}
