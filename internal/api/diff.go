package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lexiqai/scribe-gateway/internal/store"
)

// DiffRequest is the body of a visit diff request.
type DiffRequest struct {
	PriorNote         string `json:"prior_note"`
	CurrentTranscript string `json:"current_transcript"`
	TranscriptionID   string `json:"transcriptionId,omitempty"`
}

// GenerateDiff compares a prior note with a current transcript. When a
// transcription id is given the result is stored as that transcription's
// analysis.
// POST /api/diff
func (h *Handler) GenerateDiff(c echo.Context) error {
	ctx := c.Request().Context()

	var req DiffRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if req.PriorNote == "" || req.CurrentTranscript == "" {
		return c.JSON(http.StatusBadRequest, errorBody("prior_note and current_transcript are required"))
	}

	result := h.differ.Diff(ctx, req.PriorNote, req.CurrentTranscript)

	if req.TranscriptionID != "" {
		_, err := h.store.UpsertAnalysis(ctx, req.TranscriptionID, store.AnalysisFields{
			DeltaSummary:     result.DeltaSummary,
			ChangesNew:       result.Changes.New,
			ChangesResolved:  result.Changes.Resolved,
			ChangesWorsened:  result.Changes.Worsened,
			ChangesImproved:  result.Changes.Improved,
			ChangesUnchanged: result.Changes.Unchanged,
		})
		if err != nil {
			h.logger.Error().Err(err).Str("transcription_id", req.TranscriptionID).Msg("Error generating visit diff")
			return c.JSON(http.StatusInternalServerError, errorBody("Failed to generate visit diff"))
		}
	}

	return c.JSON(http.StatusOK, result)
}
