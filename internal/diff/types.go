// Package diff compares a prior clinical note with a new visit transcript.
package diff

import (
	"context"
	"errors"
)

// DefaultDisclaimer is used whenever the comparison does not supply one.
const DefaultDisclaimer = "These results are AI-generated and should be reviewed by a clinician."

// CategoryBillingOrCompleteness is the only nudge category currently accepted.
const CategoryBillingOrCompleteness = "billing_or_completeness"

var (
	// ErrComparisonUnavailable means no comparison capability is configured.
	ErrComparisonUnavailable = errors.New("comparison capability is not configured")

	// ErrMalformedResponse means the comparison output held no JSON object.
	ErrMalformedResponse = errors.New("malformed comparison response")
)

// Comparator asks an external model to compare two texts and returns its raw
// response.
type Comparator interface {
	Compare(ctx context.Context, priorNote, currentTranscript string) (string, error)
}

// Changes groups findings by how they moved between the two texts.
type Changes struct {
	New       []string `json:"new"`
	Resolved  []string `json:"resolved"`
	Worsened  []string `json:"worsened"`
	Improved  []string `json:"improved"`
	Unchanged []string `json:"unchanged"`
}

// Nudge is a documentation-completeness suggestion tied to transcript text.
type Nudge struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	EvidenceSpan string `json:"evidence_span"`
}

// Result is the visit diff returned to clients. Every list is non-nil.
type Result struct {
	DeltaSummary   []string `json:"delta_summary"`
	Changes        Changes  `json:"changes"`
	Nudges         []Nudge  `json:"nudges"`
	SafeDisclaimer string   `json:"safe_disclaimer"`
}

// Path records which route produced a Result.
type Path string

const (
	PathPrimary  Path = "primary"
	PathSalvaged Path = "salvaged"
	PathFallback Path = "fallback"
)

func emptyResult() Result {
	return Result{
		DeltaSummary: []string{},
		Changes: Changes{
			New:       []string{},
			Resolved:  []string{},
			Worsened:  []string{},
			Improved:  []string{},
			Unchanged: []string{},
		},
		Nudges:         []Nudge{},
		SafeDisclaimer: DefaultDisclaimer,
	}
}
