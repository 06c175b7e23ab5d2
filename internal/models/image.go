package models

import (
	"strings"
	"time"
)

// Image represents a photo of an oilcloth roll stored in the images table.
//
// Data is only populated when the caller explicitly asks for the payload.
type Image struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Data      []byte    `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ImageData is the raw payload of an image together with the name used to derive its content type.
// UpdatedAt identifies the stored version the payload was read from.
type ImageData struct {
	Name      string    `json:"name"`
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContentType returns the MIME type the payload is served with
func (d *ImageData) ContentType() string {
	return ContentTypeFromName(d.Name)
}

// CreateImageRequest represents an image upload
type CreateImageRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Data []byte `json:"data" validate:"required,min=1"`
}

// UpdateImageRequest represents an image edit.
// A nil Data leaves the stored payload untouched.
type UpdateImageRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Data []byte `json:"data,omitempty"`
}

const defaultImageContentType = "image/jpeg"

// imageContentTypes is checked in order against the lowercased image name
var imageContentTypes = []struct {
	suffix      string
	contentType string
}{
	{".png", "image/png"},
	{".gif", "image/gif"},
	{".webp", "image/webp"},
}

// ContentTypeFromName derives a content type from the suffix of an image name.
// The match is case-insensitive; anything unknown is served as image/jpeg.
func ContentTypeFromName(name string) string {
	lower := strings.ToLower(name)
	for _, ct := range imageContentTypes {
		if strings.HasSuffix(lower, ct.suffix) {
			return ct.contentType
		}
	}
	return defaultImageContentType
}
