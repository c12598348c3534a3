// Package stt transcribes finished recordings with Deepgram's prerecorded API.
package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/scribe-gateway/internal/observability"
	"github.com/lexiqai/scribe-gateway/internal/resilience"
)

// ErrNoTranscript is returned when Deepgram answers without any alternative.
var ErrNoTranscript = errors.New("deepgram returned no transcript")

// Config configures a DeepgramTranscriber.
type Config struct {
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

// source performs one prerecorded request and returns the best transcript.
type source interface {
	Transcribe(ctx context.Context, audio io.Reader, opts *interfaces.PreRecordedTranscriptionOptions) (string, error)
}

// DeepgramTranscriber implements transcript.Transcriber.
type DeepgramTranscriber struct {
	source  source
	options interfaces.PreRecordedTranscriptionOptions
	timeout time.Duration
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewDeepgramTranscriber creates a transcriber backed by the Deepgram REST
// client. A nil breaker disables fail-fast.
func NewDeepgramTranscriber(cfg Config, breaker *resilience.CircuitBreaker, logger zerolog.Logger) *DeepgramTranscriber {
	c := listenClient.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return newTranscriber(&restSource{client: api.New(c)}, cfg, breaker, logger)
}

func newTranscriber(src source, cfg Config, breaker *resilience.CircuitBreaker, logger zerolog.Logger) *DeepgramTranscriber {
	return &DeepgramTranscriber{
		source: src,
		options: interfaces.PreRecordedTranscriptionOptions{
			Model:       cfg.Model,
			Language:    cfg.Language,
			Punctuate:   true,
			SmartFormat: true,
		},
		timeout: cfg.Timeout,
		breaker: breaker,
		logger:  logger.With().Str("component", "stt").Str("provider", "deepgram").Logger(),
	}
}

// Transcribe uploads the whole capture in one request. Deepgram detects the
// container itself, so mimeType is only logged.
func (d *DeepgramTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	opts := d.options
	var text string
	call := func(ctx context.Context) error {
		var err error
		text, err = d.source.Transcribe(ctx, bytes.NewReader(audio), &opts)
		return err
	}

	var err error
	if d.breaker != nil {
		err = d.breaker.Call(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if d.breaker != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
			observability.IncrementCircuitBreakerFailures(d.breaker.Name())
		}
		d.logger.Warn().
			Err(err).
			Str("mime_type", mimeType).
			Int("bytes", len(audio)).
			Dur("duration", time.Since(start)).
			Msg("Deepgram transcription failed")
		return "", fmt.Errorf("deepgram transcribe: %w", err)
	}

	d.logger.Debug().
		Str("mime_type", mimeType).
		Int("bytes", len(audio)).
		Dur("duration", time.Since(start)).
		Msg("Deepgram transcription completed")
	return text, nil
}

// restSource adapts the SDK's prerecorded REST client.
type restSource struct {
	client *api.Client
}

func (r *restSource) Transcribe(ctx context.Context, audio io.Reader, opts *interfaces.PreRecordedTranscriptionOptions) (string, error) {
	res, err := r.client.FromStream(ctx, audio, opts)
	if err != nil {
		return "", err
	}
	if res == nil || res.Results == nil || len(res.Results.Channels) == 0 ||
		len(res.Results.Channels[0].Alternatives) == 0 {
		return "", ErrNoTranscript
	}
	return res.Results.Channels[0].Alternatives[0].Transcript, nil
}
