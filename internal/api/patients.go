package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lexiqai/scribe-gateway/internal/store"
)

// PatientSummary is the list view of a patient.
type PatientSummary struct {
	ID     string `json:"id"`
	MRN    string `json:"mrn"`
	Name   string `json:"name"`
	Gender string `json:"gender"`
	Age    int    `json:"age"`
	DOB    string `json:"dob"`
}

// ListPatients returns every patient ordered by name.
// GET /api/patients
func (h *Handler) ListPatients(c echo.Context) error {
	patients, err := h.store.ListPatients(c.Request().Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Error fetching patients")
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to fetch patients"))
	}

	out := make([]PatientSummary, 0, len(patients))
	for _, p := range patients {
		out = append(out, PatientSummary{
			ID:     p.ID,
			MRN:    p.MRN,
			Name:   p.Name,
			Gender: p.Gender,
			Age:    p.Age,
			DOB:    p.DOB,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// GetPatient returns one patient with its transcriptions.
// GET /api/patients/:id
func (h *Handler) GetPatient(c echo.Context) error {
	id := c.Param("id")

	patient, err := h.store.GetPatient(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorBody("Patient not found"))
	}
	if err != nil {
		h.logger.Error().Err(err).Str("patient_id", id).Msg("Error fetching patient details")
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to fetch patient details"))
	}

	if patient.Transcriptions == nil {
		patient.Transcriptions = []store.Transcription{}
	}
	return c.JSON(http.StatusOK, patient)
}

// ListTranscriptions returns a patient's transcriptions, newest first.
// GET /api/patients/:id/transcriptions
func (h *Handler) ListTranscriptions(c echo.Context) error {
	id := c.Param("id")

	transcriptions, err := h.store.ListTranscriptions(c.Request().Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("patient_id", id).Msg("Error fetching patient transcriptions")
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to fetch patient transcriptions"))
	}
	return c.JSON(http.StatusOK, transcriptions)
}
