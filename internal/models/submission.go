package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// SubmissionTTL is how long a consultant submission stays visible to the cashier.
// The value is owned by the consultant_submissions.expires_at column default.
const SubmissionTTL = time.Hour

// LengthScale is the number of decimal places stored for a cut length
const LengthScale = 2

// Submission represents a cut length recorded by a consultant against an image
type Submission struct {
	ID           int64           `json:"id"`
	ImageID      int64           `json:"image_id"`
	LengthMeters decimal.Decimal `json:"length_meters"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
	ImageName    string          `json:"image_name,omitempty"`
}

// MarshalJSON writes length_meters as a string with exactly two decimals, e.g. "3.50"
func (s Submission) MarshalJSON() ([]byte, error) {
	type plain Submission
	return json.Marshal(struct {
		plain
		LengthMeters string `json:"length_meters"`
	}{
		plain:        plain(s),
		LengthMeters: s.LengthMeters.StringFixed(LengthScale),
	})
}

// CreateSubmissionRequest represents the JSON body of POST /api/submissions
type CreateSubmissionRequest struct {
	ImageID      int64           `json:"image_id" validate:"required,gt=0"`
	LengthMeters decimal.Decimal `json:"length_meters" validate:"required,gt=0,lte=99999999.99"`
}

// PurgeResult is returned by the expired submissions cleanup
type PurgeResult struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}
