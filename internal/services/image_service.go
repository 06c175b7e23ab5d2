package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oilclothshop/backend/internal/cache"
	"github.com/oilclothshop/backend/internal/models"
	"go.uber.org/zap"
)

// ImageRepository is the interface that wraps methods for images table data access
type ImageRepository interface {
	// Method GetAll retrieves metadata of all images ordered by last change, newest first.
	//
	// An empty table yields an empty, non-nil slice.
	GetAll(ctx context.Context) ([]models.Image, error)
	// Method GetByID retrieves one image.
	//
	// The payload is loaded only when "includeData" is true.
	// models.ErrImageNotFound is returned when no row has the given id.
	GetByID(ctx context.Context, id int64, includeData bool) (*models.Image, error)
	// Method GetVersion retrieves the updated_at of an image, which changes with every write.
	//
	// models.ErrImageNotFound is returned when no row has the given id.
	GetVersion(ctx context.Context, id int64) (time.Time, error)
	// Method GetData retrieves the payload and name of an image together with the version they belong to.
	//
	// models.ErrImageNotFound is returned when no row has the given id.
	GetData(ctx context.Context, id int64) (*models.ImageData, error)
	// Method Create stores a new image and returns its metadata.
	Create(ctx context.Context, name string, data []byte) (*models.Image, error)
	// Method Update renames an image and replaces its payload when "data" is not nil.
	//
	// models.ErrImageNotFound is returned when no row has the given id.
	Update(ctx context.Context, id int64, name string, data []byte) (*models.Image, error)
	// Method Delete removes an image together with its submissions.
	//
	// models.ErrImageNotFound is returned when no row has the given id.
	Delete(ctx context.Context, id int64) error
}

// StructValidator validates request structs
type StructValidator interface {
	Struct(s any) error
}

type imageService struct {
	repo      ImageRepository
	cache     cache.ImageCache
	validator StructValidator
	logger    *zap.Logger
}

// NewImageService creates a new image service.
// Image payloads are read through imageCache.
func NewImageService(repo ImageRepository, imageCache cache.ImageCache, validator StructValidator, logger *zap.Logger) *imageService {
	return &imageService{
		repo:      repo,
		cache:     imageCache,
		validator: validator,
		logger:    logger,
	}
}

// ListImages returns metadata of every image
func (s *imageService) ListImages(ctx context.Context) ([]models.Image, error) {
	images, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error("failed to list images", zap.Error(err))
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images, nil
}

// GetImage returns one image, with its payload when includeData is set
func (s *imageService) GetImage(ctx context.Context, id int64, includeData bool) (*models.Image, error) {
	img, err := s.repo.GetByID(ctx, id, includeData)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return img, nil
}

// GetImageData returns the payload of an image, preferring the cache.
//
// The current version is always read from the database first, so a cached payload
// is only served while the image still exists and has not changed since it was cached.
// Cache failures are logged and fall back to the database.
func (s *imageService) GetImageData(ctx context.Context, id int64) (*models.ImageData, error) {
	version, err := s.repo.GetVersion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get image data: %w", err)
	}

	data, err := s.cache.Get(ctx, id, version)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("image cache read failed", zap.Error(err), zap.Int64("id", id))
	}

	data, err = s.repo.GetData(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get image data: %w", err)
	}

	// stored under the version it was read at, which may already be older than version
	if err := s.cache.Set(ctx, id, data); err != nil {
		s.logger.Warn("failed to cache image", zap.Error(err), zap.Int64("id", id))
	}

	return data, nil
}

// CreateImage stores a new image. Name and a non-empty payload are required.
func (s *imageService) CreateImage(ctx context.Context, req *models.CreateImageRequest) (*models.Image, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	img, err := s.repo.Create(ctx, req.Name, req.Data)
	if err != nil {
		s.logger.Error("failed to create image", zap.Error(err), zap.String("name", req.Name))
		return nil, fmt.Errorf("failed to create image: %w", err)
	}

	s.logger.Info("image created", zap.Int64("id", img.ID), zap.Int("size", len(req.Data)))
	return img, nil
}

// UpdateImage renames an image and replaces its payload when one is supplied.
// An empty payload counts as no payload.
func (s *imageService) UpdateImage(ctx context.Context, id int64, req *models.UpdateImageRequest) (*models.Image, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	data := req.Data
	if len(data) == 0 {
		data = nil
	}

	img, err := s.repo.Update(ctx, id, req.Name, data)
	if err != nil {
		return nil, fmt.Errorf("failed to update image: %w", err)
	}

	s.logger.Info("image updated", zap.Int64("id", id), zap.Bool("data_replaced", data != nil))
	return img, nil
}

// DeleteImage removes an image and, through the foreign key, its submissions
func (s *imageService) DeleteImage(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	s.logger.Info("image deleted", zap.Int64("id", id))
	return nil
}
