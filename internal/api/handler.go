// Package api provides the HTTP handlers for patients, transcriptions and visit diffs.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lexiqai/scribe-gateway/internal/diff"
	"github.com/lexiqai/scribe-gateway/internal/store"
)

// Store is the subset of the record store the handlers read and write.
type Store interface {
	Ping(ctx context.Context) error
	ListPatients(ctx context.Context) ([]store.Patient, error)
	GetPatient(ctx context.Context, id string) (*store.Patient, error)
	ListTranscriptions(ctx context.Context, patientID string) ([]store.Transcription, error)
	UpsertAnalysis(ctx context.Context, transcriptionID string, f store.AnalysisFields) (*store.Analysis, error)
}

// Differ produces a visit diff. It never fails; unavailable or broken
// comparisons degrade to the local fallback.
type Differ interface {
	Diff(ctx context.Context, priorNote, currentTranscript string) diff.Result
}

// Handler handles HTTP requests.
type Handler struct {
	store  Store
	differ Differ
	logger zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(store Store, differ Differ, logger zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		differ: differ,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")

	g.GET("/patients", h.ListPatients)
	g.GET("/patients/:id", h.GetPatient)
	g.GET("/patients/:id/transcriptions", h.ListTranscriptions)

	g.POST("/diff", h.GenerateDiff)

	g.GET("/health", h.Health)
}

// Health reports whether the record store is reachable.
// GET /api/health
func (h *Handler) Health(c echo.Context) error {
	if err := h.store.Ping(c.Request().Context()); err != nil {
		h.logger.Error().Err(err).Msg("Database connection failed")
		return c.JSON(http.StatusInternalServerError, errorBody("Database connection failed"))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
