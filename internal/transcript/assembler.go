// Package transcript turns a finished audio capture into text and a short title.
package transcript

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lexiqai/scribe-gateway/internal/audio"
)

// Transcriber converts one complete audio payload into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Titler produces a short human-readable label for a transcript.
type Titler interface {
	Title(ctx context.Context, text string) (string, error)
}

// Assembler finalizes captures. It holds no per-session state, so one
// instance is shared by every connection.
type Assembler struct {
	transcriber Transcriber
	titler      Titler
	logger      zerolog.Logger
}

// NewAssembler creates an assembler. Either capability may be nil when it is
// not configured.
func NewAssembler(transcriber Transcriber, titler Titler, logger zerolog.Logger) *Assembler {
	return &Assembler{
		transcriber: transcriber,
		titler:      titler,
		logger:      logger.With().Str("component", "transcript").Logger(),
	}
}

// Available reports whether a transcription capability is configured.
func (a *Assembler) Available() bool {
	return a.transcriber != nil
}

// Finalize concatenates chunks in arrival order and transcribes them with a
// single upstream call.
func (a *Assembler) Finalize(ctx context.Context, chunks [][]byte, mimeType string) (string, error) {
	if a.transcriber == nil {
		return "", ErrTranscriptionUnavailable
	}

	payload := audio.Concat(chunks)
	if len(payload) == 0 {
		return "", ErrEmptyCapture
	}

	mimeType = audio.NormalizeMimeType(mimeType)
	text, err := a.transcriber.Transcribe(ctx, payload, mimeType)
	if err != nil {
		return "", &UpstreamError{Op: "transcribe", Err: err}
	}

	return strings.TrimSpace(text), nil
}

// TitleFor returns a short label for text. It never fails: when the titling
// capability is missing or errors, FallbackTitle is used.
func (a *Assembler) TitleFor(ctx context.Context, text string) string {
	if a.titler == nil {
		return FallbackTitle(text)
	}

	title, err := a.titler.Title(ctx, text)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Title generation failed, using fallback")
		return FallbackTitle(text)
	}

	if title = CleanTitle(title); title == "" {
		return FallbackTitle(text)
	}
	return title
}
