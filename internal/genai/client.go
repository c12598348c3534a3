// Package genai calls Gemini through the Google Gen AI SDK to transcribe
// audio, compare notes and title transcripts.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/lexiqai/scribe-gateway/internal/observability"
	"github.com/lexiqai/scribe-gateway/internal/resilience"
)

// ErrEmptyResponse is returned when the model produced no candidate text.
var ErrEmptyResponse = errors.New("gemini returned no candidate text")

// Config configures a Client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string        // empty means the SDK default endpoint
	Timeout time.Duration // per call; zero means the caller's context only
}

// Client implements transcript.Transcriber, transcript.Titler and
// diff.Comparator on top of one model. It is safe for concurrent use.
type Client struct {
	models  *genai.Models
	model   string
	timeout time.Duration
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewClient creates a Gemini client. A nil breaker disables fail-fast.
func NewClient(ctx context.Context, cfg Config, breaker *resilience.CircuitBreaker, logger zerolog.Logger) (*Client, error) {
	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{
		models:  sdk.Models,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		breaker: breaker,
		logger:  logger.With().Str("component", "genai").Str("model", cfg.Model).Logger(),
	}, nil
}

// Transcribe sends the whole audio payload inline with the transcription
// instruction and returns the trimmed transcript.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	text, err := c.generate(ctx, "transcribe",
		genai.NewPartFromText(transcribePrompt),
		genai.NewPartFromBytes(audio, mimeType),
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Compare asks for a JSON visit diff and returns the raw model output.
func (c *Client) Compare(ctx context.Context, priorNote, currentTranscript string) (string, error) {
	return c.generate(ctx, "compare",
		genai.NewPartFromText(compareSystemPrompt),
		genai.NewPartFromText(compareUserPrompt(priorNote, currentTranscript)),
	)
}

// Title asks for a short transcript title.
func (c *Client) Title(ctx context.Context, transcript string) (string, error) {
	text, err := c.generate(ctx, "title", genai.NewPartFromText(titlePrompt(transcript)))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) generate(ctx context.Context, op string, parts ...*genai.Part) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	var text string
	call := func(ctx context.Context) error {
		resp, err := c.models.GenerateContent(ctx, c.model, contents, nil)
		if err != nil {
			return err
		}
		text, err = responseText(resp)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Call(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if c.breaker != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
			observability.IncrementCircuitBreakerFailures(c.breaker.Name())
		}
		c.logger.Warn().Err(err).Str("op", op).Dur("duration", time.Since(start)).Msg("Gemini call failed")
		return "", fmt.Errorf("gemini %s: %w", op, err)
	}

	c.logger.Debug().Str("op", op).Dur("duration", time.Since(start)).Int("chars", len(text)).Msg("Gemini call completed")
	return text, nil
}

// responseText returns the first candidate's text, or ErrEmptyResponse
// when there is none.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	if len(resp.Candidates) == 0 && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: blocked (%s)", ErrEmptyResponse, resp.PromptFeedback.BlockReason)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
