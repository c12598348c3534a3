package session

import (
	"github.com/rs/zerolog"

	"github.com/lexiqai/scribe-gateway/internal/observability"
)

// EventTranscriptionResult is the only server-to-client session event.
const EventTranscriptionResult = "transcription-result"

// Emitter sends one event to a client, addressed either by logical id (every
// connection registered under it) or by raw connection id.
type Emitter interface {
	EmitToSession(logicalID, event string, payload any) error
	EmitToConnection(connectionID, event string, payload any) error
}

// TranscriptionResult is the payload of transcription-result. Errors use the
// same shape with a user-visible message in Text.
type TranscriptionResult struct {
	Text       string `json:"text"`
	IsComplete bool   `json:"isComplete"`
}

// Delivery is one finished finalize waiting to be emitted.
type Delivery struct {
	ConnectionID string
	LogicalID    string
	Text         string
	Failed       bool
}

// Target returns the id the delivery is addressed to and whether it is a
// logical id.
func (d Delivery) Target() (string, bool) {
	if d.LogicalID != "" {
		return d.LogicalID, true
	}
	return d.ConnectionID, false
}

// Router emits finalize results. It never retries and never reports failure
// back to the session state machine.
type Router struct {
	emitter Emitter
	logger  zerolog.Logger
}

// NewRouter creates a router over emitter
func NewRouter(emitter Emitter, logger zerolog.Logger) *Router {
	return &Router{
		emitter: emitter,
		logger:  logger.With().Str("component", "router").Logger(),
	}
}

// Deliver emits exactly one transcription-result for d. It reports whether
// the emitter accepted it.
func (r *Router) Deliver(d Delivery) bool {
	payload := TranscriptionResult{Text: d.Text, IsComplete: true}
	target, logical := d.Target()

	var err error
	if logical {
		err = r.emitter.EmitToSession(target, EventTranscriptionResult, payload)
	} else {
		err = r.emitter.EmitToConnection(target, EventTranscriptionResult, payload)
	}

	observability.RecordDelivery(err == nil)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("connection_id", d.ConnectionID).
			Str("target", target).
			Bool("logical", logical).
			Msg("Failed to deliver transcription result")
		observability.RecordError("delivery", "router")
		return false
	}

	r.logger.Debug().
		Str("connection_id", d.ConnectionID).
		Str("target", target).
		Bool("logical", logical).
		Bool("failed", d.Failed).
		Msg("Delivered transcription result")
	return true
}
