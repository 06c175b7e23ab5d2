package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oilclothshop/backend/internal/models"
	"go.uber.org/zap"
)

// multipartMemory is how much of an upload is buffered in memory before spilling to disk
const multipartMemory = 32 << 20

// imageCacheControl lets browsers keep image payloads for a year
const imageCacheControl = "public, max-age=31536000"

// ImageService is the interface that wraps methods for image business logic.
type ImageService interface {
	// Method ListImages retrieve metadata of all images, most recently updated first.
	ListImages(ctx context.Context) ([]models.Image, error)
	// Method GetImage retrieve one image by its ID.
	//
	// The payload is included only when "includeData" is true.
	// models.ErrImageNotFound is returned when the image does not exist.
	GetImage(ctx context.Context, id int64, includeData bool) (*models.Image, error)
	// Method GetImageData retrieve the payload of an image together with its name.
	//
	// models.ErrImageNotFound is returned when the image does not exist.
	GetImageData(ctx context.Context, id int64) (*models.ImageData, error)
	// Method CreateImage store a new image.
	//
	// A *models.ValidationError is returned when the name or payload is missing or invalid.
	CreateImage(ctx context.Context, req *models.CreateImageRequest) (*models.Image, error)
	// Method UpdateImage rename an image and replace its payload when req.Data is not empty.
	//
	// Please reference CreateImage and GetImage methods for error values.
	UpdateImage(ctx context.Context, id int64, req *models.UpdateImageRequest) (*models.Image, error)
	// Method DeleteImage remove an image and all submissions recorded against it.
	//
	// models.ErrImageNotFound is returned when the image does not exist.
	DeleteImage(ctx context.Context, id int64) error
}

// ImageHandler handles HTTP requests for images
type ImageHandler struct {
	BaseHandler
	service ImageService
}

// NewImageHandler creates a new image handler
func NewImageHandler(svc ImageService, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{
		service:     svc,
		BaseHandler: BaseHandler{logger: logger},
	}
}

// RegisterRoutes registers all image handler routes
func (h *ImageHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/images", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Get("/data", h.GetData)
		})
	})
}

// List handles GET /api/images
// @Summary List images
// @Description Get metadata of all roll photos, most recently updated first. Payloads are not included.
// @Tags images
// @Produce json
// @Success 200 {array} models.Image
// @Failure 500 {object} map[string]string
// @Router /api/images [get]
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	images, err := h.service.ListImages(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch images")
		return
	}

	h.respondJSON(w, http.StatusOK, images)
}

// Create handles POST /api/images
// @Summary Upload an image
// @Description Store a new roll photo from a multipart form with "name" and "file" fields
// @Tags images
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Display name, its suffix selects the served content type"
// @Param file formData file true "Image file"
// @Success 201 {object} models.Image
// @Failure 400 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/images [post]
func (h *ImageHandler) Create(w http.ResponseWriter, r *http.Request) {
	name, data, ok := h.readImageForm(w, r)
	if !ok {
		return
	}
	if name == "" || len(data) == 0 {
		h.respondError(w, http.StatusBadRequest, "Name and file are required")
		return
	}

	img, err := h.service.CreateImage(r.Context(), &models.CreateImageRequest{Name: name, Data: data})
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to create image")
		return
	}

	h.respondJSON(w, http.StatusCreated, img)
}

// Get handles GET /api/images/{id}
// @Summary Get an image
// @Description Get one image. The base64 payload is included only with data=true.
// @Tags images
// @Produce json
// @Param id path int true "Image ID"
// @Param data query bool false "Include the payload"
// @Success 200 {object} models.Image
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/images/{id} [get]
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseImageID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, msgInvalidImageID)
		return
	}
	includeData := r.URL.Query().Get("data") == "true"

	img, err := h.service.GetImage(r.Context(), id, includeData)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch image")
		return
	}

	h.respondJSON(w, http.StatusOK, img)
}

// Update handles PUT /api/images/{id}
// @Summary Update an image
// @Description Rename an image and optionally replace its file. Without a file only the name changes.
// @Tags images
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Image ID"
// @Param name formData string true "New display name"
// @Param file formData file false "Replacement image file"
// @Success 200 {object} models.Image
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/images/{id} [put]
func (h *ImageHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseImageID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, msgInvalidImageID)
		return
	}

	name, data, ok := h.readImageForm(w, r)
	if !ok {
		return
	}
	if name == "" {
		h.respondError(w, http.StatusBadRequest, "Name is required")
		return
	}

	img, err := h.service.UpdateImage(r.Context(), id, &models.UpdateImageRequest{Name: name, Data: data})
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to update image")
		return
	}

	h.respondJSON(w, http.StatusOK, img)
}

// Delete handles DELETE /api/images/{id}
// @Summary Delete an image
// @Description Delete an image together with every submission recorded against it
// @Tags images
// @Produce json
// @Param id path int true "Image ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/images/{id} [delete]
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseImageID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, msgInvalidImageID)
		return
	}

	if err := h.service.DeleteImage(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err, "Failed to delete image")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Image deleted successfully"})
}

// GetData handles GET /api/images/{id}/data
// @Summary Download image bytes
// @Description Serve the raw payload. The content type is derived from the name suffix (.png, .gif, .webp, otherwise image/jpeg).
// @Tags images
// @Produce image/jpeg,image/png,image/gif,image/webp
// @Param id path int true "Image ID"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/images/{id}/data [get]
func (h *ImageHandler) GetData(w http.ResponseWriter, r *http.Request) {
	id, ok := parseImageID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, msgInvalidImageID)
		return
	}

	data, err := h.service.GetImageData(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch image data")
		return
	}

	w.Header().Set("Content-Type", data.ContentType())
	w.Header().Set("Content-Disposition", contentDisposition(data.Name))
	w.Header().Set("Cache-Control", imageCacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(data.Data)))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data.Data); err != nil {
		h.logger.Warn("failed to write image data", zap.Error(err), zap.Int64("id", id))
	}
}

// readImageForm parses the multipart upload and returns the name field and file bytes.
// A missing or empty file part yields nil data. When ok is false the response is already written.
func (h *ImageHandler) readImageForm(w http.ResponseWriter, r *http.Request) (name string, data []byte, ok bool) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			h.respondError(w, http.StatusRequestEntityTooLarge, msgRequestTooLarge)
			return "", nil, false
		}
		h.logger.Info("failed to parse multipart form", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, msgInvalidBody)
		return "", nil, false
	}
	defer r.MultipartForm.RemoveAll()

	name = r.FormValue("name")

	file, _, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return name, nil, true
	}
	if err != nil {
		h.logger.Info("failed to read file from form", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, msgInvalidBody)
		return "", nil, false
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		h.logger.Error("failed to read uploaded file", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, msgInvalidBody)
		return "", nil, false
	}
	if len(data) == 0 {
		data = nil
	}

	return name, data, true
}

// contentDisposition builds an inline disposition that keeps the stored name.
// Non-ASCII names are also sent in RFC 5987 form.
func contentDisposition(name string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", "").Replace(name)
	value := fmt.Sprintf(`inline; filename="%s"`, escaped)

	for _, c := range name {
		if c > 0x7e {
			return value + "; filename*=UTF-8''" + url.PathEscape(name)
		}
	}
	return value
}
