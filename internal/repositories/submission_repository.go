package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/oilclothshop/backend/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// mysqlErrNoReferencedRow is raised when a foreign key points at a missing parent row
const mysqlErrNoReferencedRow = 1452

type submissionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubmissionRepository creates a repository over the consultant_submissions table
func NewSubmissionRepository(db *sql.DB, logger *zap.Logger) *submissionRepository {
	return &submissionRepository{
		db:     db,
		logger: logger,
	}
}

// ListActive returns unexpired submissions with the name of their image, newest first.
// Expiry is judged by the database clock.
func (r *submissionRepository) ListActive(ctx context.Context) ([]models.Submission, error) {
	query := `
		SELECT cs.id, cs.image_id, cs.length_meters, cs.created_at, cs.expires_at, i.name AS image_name
		FROM consultant_submissions cs
		JOIN images i ON cs.image_id = i.id
		WHERE cs.expires_at > CURRENT_TIMESTAMP
		ORDER BY cs.created_at DESC, cs.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to query submissions", zap.Error(err))
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	submissions := make([]models.Submission, 0)
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(&s.ID, &s.ImageID, &s.LengthMeters, &s.CreatedAt, &s.ExpiresAt, &s.ImageName); err != nil {
			r.logger.Error("failed to scan submission", zap.Error(err))
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, s)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating rows", zap.Error(err))
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return submissions, nil
}

// Create records a cut length; created_at and expires_at come from the column defaults
func (r *submissionRepository) Create(ctx context.Context, imageID int64, lengthMeters decimal.Decimal) (*models.Submission, error) {
	query := `INSERT INTO consultant_submissions (image_id, length_meters) VALUES (?, ?)`

	result, err := r.db.ExecContext(ctx, query, imageID, lengthMeters)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrNoReferencedRow {
			return nil, fmt.Errorf("%w: id %d", models.ErrImageNotFound, imageID)
		}
		r.logger.Error("failed to insert submission", zap.Error(err), zap.Int64("image_id", imageID))
		return nil, fmt.Errorf("failed to insert submission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("failed to get inserted submission id", zap.Error(err))
		return nil, fmt.Errorf("failed to get inserted submission id: %w", err)
	}

	selectQuery := `
		SELECT id, image_id, length_meters, created_at, expires_at
		FROM consultant_submissions
		WHERE id = ?
	`

	var s models.Submission
	err = r.db.QueryRowContext(ctx, selectQuery, id).Scan(&s.ID, &s.ImageID, &s.LengthMeters, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		r.logger.Error("failed to read back submission", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to read back submission: %w", err)
	}

	return &s, nil
}

// DeleteExpired removes every submission whose expiry has passed and returns how many went
func (r *submissionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM consultant_submissions WHERE expires_at <= CURRENT_TIMESTAMP`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to delete expired submissions", zap.Error(err))
		return 0, fmt.Errorf("failed to delete expired submissions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("failed to get rows affected", zap.Error(err))
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
