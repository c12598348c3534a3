package transcript

import (
	"errors"
	"fmt"
)

var (
	// ErrTranscriptionUnavailable means no transcription capability is configured.
	ErrTranscriptionUnavailable = errors.New("transcription capability is not configured")

	// ErrEmptyCapture means finalize was asked to transcribe zero bytes.
	ErrEmptyCapture = errors.New("no audio received to transcribe")

	// ErrUpstream matches every *UpstreamError via errors.Is.
	ErrUpstream = errors.New("upstream transcription failed")
)

// UpstreamError wraps a failure of the external transcription call.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUpstream) match any UpstreamError.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// User-visible texts for a failed finalize.
const (
	EmptyCaptureMessage = "No audio received to transcribe"
	FailureMessage      = "Error transcribing audio. Please try again."
)

// UserMessage maps a finalize error to the text the client sees. Only an
// empty capture is explained; every other failure gets the generic text.
func UserMessage(err error) string {
	if errors.Is(err, ErrEmptyCapture) {
		return EmptyCaptureMessage
	}
	return FailureMessage
}

// Kind labels an error for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTranscriptionUnavailable):
		return "unavailable"
	case errors.Is(err, ErrEmptyCapture):
		return "empty"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "internal"
	}
}
