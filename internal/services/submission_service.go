package services

import (
	"context"
	"fmt"

	"github.com/oilclothshop/backend/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SubmissionRepository is the interface that wraps methods for consultant_submissions table data access
type SubmissionRepository interface {
	// Method ListActive retrieves unexpired submissions joined with their image name, newest first.
	ListActive(ctx context.Context) ([]models.Submission, error)
	// Method Create inserts a submission; the expiry comes from the storage default.
	//
	// models.ErrImageNotFound is returned when the referenced image does not exist at insert time.
	Create(ctx context.Context, imageID int64, lengthMeters decimal.Decimal) (*models.Submission, error)
	// Method DeleteExpired removes expired submissions and returns how many rows were deleted.
	DeleteExpired(ctx context.Context) (int64, error)
}

// ImageChecker reports whether an image exists
type ImageChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type submissionService struct {
	repo      SubmissionRepository
	images    ImageChecker
	validator StructValidator
	purged    prometheus.Counter
	logger    *zap.Logger
}

// NewSubmissionService creates a new submission service.
// purged counts deleted expired rows and may be nil.
func NewSubmissionService(repo SubmissionRepository, images ImageChecker, validator StructValidator, purged prometheus.Counter, logger *zap.Logger) *submissionService {
	return &submissionService{
		repo:      repo,
		images:    images,
		validator: validator,
		purged:    purged,
		logger:    logger,
	}
}

// ListActiveSubmissions returns the submissions the cashier can still act on
func (s *submissionService) ListActiveSubmissions(ctx context.Context) ([]models.Submission, error) {
	submissions, err := s.repo.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list submissions", zap.Error(err))
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

// CreateSubmission records a cut length against an existing image.
// The length is rounded to the stored scale and must stay positive after rounding.
func (s *submissionService) CreateSubmission(ctx context.Context, req *models.CreateSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	length := req.LengthMeters.Round(models.LengthScale)
	if !length.IsPositive() {
		return nil, models.NewValidationError("length_meters must be at least 0.01")
	}

	exists, err := s.images.Exists(ctx, req.ImageID)
	if err != nil {
		return nil, fmt.Errorf("failed to check image: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: id %d", models.ErrImageNotFound, req.ImageID)
	}

	submission, err := s.repo.Create(ctx, req.ImageID, length)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	s.logger.Info("submission created",
		zap.Int64("id", submission.ID),
		zap.Int64("image_id", submission.ImageID),
		zap.String("length_meters", length.StringFixed(models.LengthScale)),
	)
	return submission, nil
}

// PurgeExpired deletes expired submissions and returns how many were removed.
// Calling it again with nothing expired returns 0.
func (s *submissionService) PurgeExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("failed to purge expired submissions", zap.Error(err))
		return 0, fmt.Errorf("failed to purge expired submissions: %w", err)
	}

	if count > 0 {
		s.logger.Info("expired submissions purged", zap.Int64("count", count))
		if s.purged != nil {
			s.purged.Add(float64(count))
		}
	}

	return count, nil
}
