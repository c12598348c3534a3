package diff

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/scribe-gateway/internal/observability"
)

// Engine produces visit diffs. Diff never fails: any problem on the primary
// path degrades to Fallback.
type Engine struct {
	comparator Comparator
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewEngine creates an engine. comparator may be nil, in which case every
// diff uses the fallback. A zero timeout leaves the caller's deadline alone.
func NewEngine(comparator Comparator, timeout time.Duration, logger zerolog.Logger) *Engine {
	return &Engine{
		comparator: comparator,
		timeout:    timeout,
		logger:     logger.With().Str("component", "diff").Logger(),
	}
}

// Available reports whether a comparison capability is configured.
func (e *Engine) Available() bool {
	return e.comparator != nil
}

// Diff compares priorNote with currentTranscript.
func (e *Engine) Diff(ctx context.Context, priorNote, currentTranscript string) Result {
	result, _ := e.DiffWithPath(ctx, priorNote, currentTranscript)
	return result
}

// DiffWithPath is Diff that also reports which path produced the result.
func (e *Engine) DiffWithPath(ctx context.Context, priorNote, currentTranscript string) (Result, Path) {
	start := time.Now()
	result, path := e.diff(ctx, priorNote, currentTranscript)
	observability.RecordDiff(string(path), time.Since(start))
	return result, path
}

func (e *Engine) diff(ctx context.Context, priorNote, currentTranscript string) (Result, Path) {
	if e.comparator == nil {
		e.logger.Debug().Err(ErrComparisonUnavailable).Msg("Using fallback diff")
		return Fallback(priorNote, currentTranscript), PathFallback
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	raw, err := e.comparator.Compare(ctx, priorNote, currentTranscript)
	if err != nil {
		e.logger.Error().Err(err).Msg("Comparison failed, using fallback diff")
		observability.RecordError("upstream", "diff")
		return Fallback(priorNote, currentTranscript), PathFallback
	}

	fields, err := Parse(raw)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Int("response_length", len(raw)).
			Msg("Unparseable comparison response, using fallback diff")
		observability.RecordError("malformed_response", "diff")
		return Fallback(priorNote, currentTranscript), PathFallback
	}

	result, repaired := Repair(fields)
	if len(repaired) > 0 {
		e.logger.Warn().
			Str("fields", strings.Join(repaired, ",")).
			Msg("Repaired comparison response fields")
		return result, PathSalvaged
	}
	return result, PathPrimary
}
