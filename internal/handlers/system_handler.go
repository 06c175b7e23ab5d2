package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// SchemaInitializer applies the database schema
type SchemaInitializer interface {
	// Method EnsureSchema apply pending migrations; an up to date schema is not an error.
	EnsureSchema(ctx context.Context) error
}

// Pinger checks database connectivity
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SystemHandler handles schema initialisation and health checks
type SystemHandler struct {
	BaseHandler
	schema SchemaInitializer
	db     Pinger
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(schema SchemaInitializer, db Pinger, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		BaseHandler: BaseHandler{logger: logger},
		schema:      schema,
		db:          db,
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/init", h.InitDatabase)
	r.Get("/health", h.Health)
}

// InitDatabase handles GET /api/init
// @Summary Initialise the database
// @Description Create the tables if they are missing. Calling it again changes nothing.
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/init [get]
func (h *SystemHandler) InitDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.schema.EnsureSchema(r.Context()); err != nil {
		h.logger.Error("failed to initialize database", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to initialize database")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Database initialized successfully"})
}

// Health handles GET /health
// @Summary Health check
// @Description Report whether the database is reachable
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		h.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
