package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sagarc03/storefront"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes appropriate error response based on error type.
// Messages for server-side failures are generic so that paths and driver
// errors never reach the client.
func HandleError(w http.ResponseWriter, err error) {
	var rejection *storefront.UploadRejection
	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, storefront.ErrPromotionFailed):
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "image could not be published")
	case errors.Is(err, storefront.ErrPathRejected):
		slog.Warn("request rejected", "error", err)
		WriteError(w, http.StatusForbidden, "access_denied", "access denied")
	case errors.As(err, &rejection):
		slog.Info("upload rejected", "reason", rejection.Reason, "error", err)
		WriteError(w, http.StatusBadRequest, string(rejection.Reason), rejection.Message)
	case errors.Is(err, storefront.ErrUploadRejected):
		WriteError(w, http.StatusBadRequest, "upload_rejected", "upload rejected")
	case errors.As(err, &tooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body is too large")
	case errors.Is(err, ErrMultipleFiles), errors.Is(err, ErrMissingFile):
		WriteError(w, http.StatusBadRequest, "invalid_upload", err.Error())
	case errors.Is(err, storefront.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, storefront.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, storefront.ErrConflict):
		WriteError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, storefront.ErrUnauthorized):
		slog.Warn("unauthorized request", "error", err)
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	default:
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
