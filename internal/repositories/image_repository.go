package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oilclothshop/backend/internal/models"
	"go.uber.org/zap"
)

type imageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewImageRepository creates a repository over the images table
func NewImageRepository(db *sql.DB, logger *zap.Logger) *imageRepository {
	return &imageRepository{
		db:     db,
		logger: logger,
	}
}

// GetAll returns metadata of every image, most recently changed first.
// The payload column is never read here.
func (r *imageRepository) GetAll(ctx context.Context) ([]models.Image, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM images
		ORDER BY updated_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to query images", zap.Error(err))
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	images := make([]models.Image, 0)
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.Name, &img.CreatedAt, &img.UpdatedAt); err != nil {
			r.logger.Error("failed to scan image", zap.Error(err))
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating rows", zap.Error(err))
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return images, nil
}

// GetByID returns a single image, with its payload only when includeData is set
func (r *imageRepository) GetByID(ctx context.Context, id int64, includeData bool) (*models.Image, error) {
	var img models.Image
	var err error

	if includeData {
		query := `SELECT id, name, data, created_at, updated_at FROM images WHERE id = ?`
		err = r.db.QueryRowContext(ctx, query, id).Scan(&img.ID, &img.Name, &img.Data, &img.CreatedAt, &img.UpdatedAt)
	} else {
		query := `SELECT id, name, created_at, updated_at FROM images WHERE id = ?`
		err = r.db.QueryRowContext(ctx, query, id).Scan(&img.ID, &img.Name, &img.CreatedAt, &img.UpdatedAt)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", models.ErrImageNotFound, id)
	}
	if err != nil {
		r.logger.Error("failed to query image", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to query image: %w", err)
	}

	return &img, nil
}

// GetVersion returns the updated_at of an image without touching its payload
func (r *imageRepository) GetVersion(ctx context.Context, id int64) (time.Time, error) {
	query := `SELECT updated_at FROM images WHERE id = ?`

	var version time.Time
	err := r.db.QueryRowContext(ctx, query, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: id %d", models.ErrImageNotFound, id)
	}
	if err != nil {
		r.logger.Error("failed to query image version", zap.Error(err), zap.Int64("id", id))
		return time.Time{}, fmt.Errorf("failed to query image version: %w", err)
	}

	return version, nil
}

// GetData returns the payload of an image, the name its content type is derived from
// and the version it was read at
func (r *imageRepository) GetData(ctx context.Context, id int64) (*models.ImageData, error) {
	query := `SELECT name, data, updated_at FROM images WHERE id = ?`

	var data models.ImageData
	err := r.db.QueryRowContext(ctx, query, id).Scan(&data.Name, &data.Data, &data.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", models.ErrImageNotFound, id)
	}
	if err != nil {
		r.logger.Error("failed to query image data", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to query image data: %w", err)
	}

	return &data, nil
}

// Create inserts an image and returns its metadata
func (r *imageRepository) Create(ctx context.Context, name string, data []byte) (*models.Image, error) {
	query := `INSERT INTO images (name, data) VALUES (?, ?)`

	result, err := r.db.ExecContext(ctx, query, name, data)
	if err != nil {
		r.logger.Error("failed to insert image", zap.Error(err))
		return nil, fmt.Errorf("failed to insert image: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("failed to get inserted image id", zap.Error(err))
		return nil, fmt.Errorf("failed to get inserted image id: %w", err)
	}

	return r.GetByID(ctx, id, false)
}

// Update renames an image and, when data is not nil, replaces its payload.
// Both forms refresh updated_at, which is kept to the microsecond so every write gets a new version.
func (r *imageRepository) Update(ctx context.Context, id int64, name string, data []byte) (*models.Image, error) {
	var result sql.Result
	var err error

	if data != nil {
		query := `UPDATE images SET name = ?, data = ?, updated_at = CURRENT_TIMESTAMP(6) WHERE id = ?`
		result, err = r.db.ExecContext(ctx, query, name, data, id)
	} else {
		query := `UPDATE images SET name = ?, updated_at = CURRENT_TIMESTAMP(6) WHERE id = ?`
		result, err = r.db.ExecContext(ctx, query, name, id)
	}
	if err != nil {
		r.logger.Error("failed to update image", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to update image: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("failed to get rows affected", zap.Error(err))
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: id %d", models.ErrImageNotFound, id)
	}

	return r.GetByID(ctx, id, false)
}

// Delete removes an image; its submissions go with it through the foreign key
func (r *imageRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM images WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("failed to delete image", zap.Error(err), zap.Int64("id", id))
		return fmt.Errorf("failed to delete image: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("failed to get rows affected", zap.Error(err))
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: id %d", models.ErrImageNotFound, id)
	}

	return nil
}

// Exists reports whether an image with the given id is stored
func (r *imageRepository) Exists(ctx context.Context, id int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM images WHERE id = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		r.logger.Error("failed to check image existence", zap.Error(err), zap.Int64("id", id))
		return false, fmt.Errorf("failed to check image existence: %w", err)
	}

	return exists, nil
}
