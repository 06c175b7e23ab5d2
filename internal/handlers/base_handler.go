// Package handlers contains the REST handlers of the API
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oilclothshop/backend/internal/models"
	"go.uber.org/zap"
)

const (
	msgImageNotFound   = "Image not found"
	msgInvalidImageID  = "invalid image ID"
	msgInvalidBody     = "invalid request body"
	msgRequestTooLarge = "Request body too large"
)

// BaseHandler provides common handler functionality
type BaseHandler struct {
	logger *zap.Logger
}

// respondJSON sends a JSON response
func (h *BaseHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// respondError sends an error JSON response
func (h *BaseHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a service error to a response.
// Validation errors carry their own message, a missing image is a 404
// and anything else is logged and answered with failureMessage.
func (h *BaseHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, failureMessage string) {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		h.respondError(w, http.StatusBadRequest, vErr.Message)
	case errors.Is(err, models.ErrValidation):
		h.respondError(w, http.StatusBadRequest, msgInvalidBody)
	case errors.Is(err, models.ErrImageNotFound):
		h.respondError(w, http.StatusNotFound, msgImageNotFound)
	default:
		h.logger.Error(failureMessage, zap.Error(err), zap.String("path", r.URL.Path))
		h.respondError(w, http.StatusInternalServerError, failureMessage)
	}
}

// parseImageID reads the {id} path parameter; only positive integers are valid
func parseImageID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// isBodyTooLarge reports whether err came from a body cut off by http.MaxBytesReader
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
