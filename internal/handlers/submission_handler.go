package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oilclothshop/backend/internal/models"
	"go.uber.org/zap"
)

// SubmissionService is the interface that wraps methods for consultant submission business logic.
type SubmissionService interface {
	// Method ListActiveSubmissions retrieve submissions that have not expired yet, newest first.
	ListActiveSubmissions(ctx context.Context) ([]models.Submission, error)
	// Method CreateSubmission record a cut length against an image.
	//
	// A *models.ValidationError is returned for a missing or out of range field,
	// models.ErrImageNotFound when the image does not exist.
	CreateSubmission(ctx context.Context, req *models.CreateSubmissionRequest) (*models.Submission, error)
	// Method PurgeExpired delete expired submissions and return how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}

// SubmissionHandler handles HTTP requests for consultant submissions
type SubmissionHandler struct {
	BaseHandler
	service SubmissionService
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(svc SubmissionService, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service:     svc,
		BaseHandler: BaseHandler{logger: logger},
	}
}

// RegisterRoutes registers all submission handler routes
func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/submissions", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Delete("/", h.PurgeExpired)
	})
}

// List handles GET /api/submissions
// @Summary List active submissions
// @Description Get the cut lengths recorded during the last hour with the name of their image, newest first
// @Tags submissions
// @Produce json
// @Success 200 {array} models.Submission
// @Failure 500 {object} map[string]string
// @Router /api/submissions [get]
func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	submissions, err := h.service.ListActiveSubmissions(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch submissions")
		return
	}

	h.respondJSON(w, http.StatusOK, submissions)
}

// Create handles POST /api/submissions
// @Summary Record a cut length
// @Description Record a length in metres against an image. The submission expires one hour later.
// @Tags submissions
// @Accept json
// @Produce json
// @Param request body models.CreateSubmissionRequest true "Image and length"
// @Success 201 {object} models.Submission
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/submissions [post]
func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isBodyTooLarge(err) {
			h.respondError(w, http.StatusRequestEntityTooLarge, msgRequestTooLarge)
			return
		}
		h.respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if req.ImageID == 0 || req.LengthMeters.IsZero() {
		h.respondError(w, http.StatusBadRequest, "Image ID and length are required")
		return
	}

	submission, err := h.service.CreateSubmission(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to create submission")
		return
	}

	h.respondJSON(w, http.StatusCreated, submission)
}

// PurgeExpired handles DELETE /api/submissions
// @Summary Remove expired submissions
// @Description Delete every submission whose expiry has passed. Safe to call repeatedly.
// @Tags submissions
// @Produce json
// @Success 200 {object} models.PurgeResult
// @Failure 500 {object} map[string]string
// @Router /api/submissions [delete]
func (h *SubmissionHandler) PurgeExpired(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.PurgeExpired(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to clean up submissions")
		return
	}

	h.respondJSON(w, http.StatusOK, models.PurgeResult{
		Message: "Expired submissions cleaned up",
		Count:   int(count),
	})
}
