// Package store persists patients, transcriptions and their visit analyses.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Patient is a person whose visits are transcribed.
type Patient struct {
	ID             string          `json:"id"`
	MRN            string          `json:"mrn"`
	Name           string          `json:"name"`
	Gender         string          `json:"gender"`
	DOB            string          `json:"dob"`
	Age            int             `json:"age"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	DoctorID       string          `json:"doctorId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Transcriptions []Transcription `json:"transcriptions,omitempty"`
}

// Transcription is one finalized visit transcript.
type Transcription struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Title     string    `json:"title,omitempty"`
	PatientID string    `json:"patientId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Analysis  *Analysis `json:"analysis,omitempty"`
}

// Analysis is the stored visit diff for a transcription.
type Analysis struct {
	ID               string    `json:"id"`
	TranscriptionID  string    `json:"transcriptionId"`
	DeltaSummary     []string  `json:"deltaSummary"`
	ChangesNew       []string  `json:"changesNew"`
	ChangesResolved  []string  `json:"changesResolved"`
	ChangesWorsened  []string  `json:"changesWorsened"`
	ChangesImproved  []string  `json:"changesImproved"`
	ChangesUnchanged []string  `json:"changesUnchanged"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// AnalysisFields are the replaceable columns of an Analysis.
type AnalysisFields struct {
	DeltaSummary     []string
	ChangesNew       []string
	ChangesResolved  []string
	ChangesWorsened  []string
	ChangesImproved  []string
	ChangesUnchanged []string
}
