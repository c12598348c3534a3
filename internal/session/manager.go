package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/scribe-gateway/internal/audio"
	"github.com/lexiqai/scribe-gateway/internal/observability"
	"github.com/lexiqai/scribe-gateway/internal/transcript"
)

// Finalizer turns a stopped capture into text. *transcript.Assembler
// implements it.
type Finalizer interface {
	Finalize(ctx context.Context, chunks [][]byte, mimeType string) (string, error)
	TitleFor(ctx context.Context, text string) string
}

// Persister stores a successful transcript. An empty patientID means the
// store picks its default patient.
type Persister interface {
	SaveTranscript(ctx context.Context, patientID, content, title string) (string, error)
}

// StartPayload is the body of start-recording.
type StartPayload struct {
	PatientID string `json:"patientId,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
}

// Manager drives the registry from connection events and runs finalizes off
// the connection's read loop.
type Manager struct {
	registry  *Registry
	router    *Router
	finalizer Finalizer
	persister Persister
	timeout   time.Duration
	logger    zerolog.Logger

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewManager wires a manager. persister may be nil.
func NewManager(registry *Registry, router *Router, finalizer Finalizer, persister Persister, timeout time.Duration, logger zerolog.Logger) *Manager {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Manager{
		registry:  registry,
		router:    router,
		finalizer: finalizer,
		persister: persister,
		timeout:   timeout,
		logger:    logger.With().Str("component", "session").Logger(),
	}
}

// Registry exposes the underlying registry
func (m *Manager) Registry() *Registry {
	return m.registry
}

// OnConnect creates the session for a new connection
func (m *Manager) OnConnect(connID string) {
	m.registry.Connect(connID)
	m.logger.Info().Str("connection_id", connID).Msg("Client connected")
}

// OnRegister binds a logical id to the connection
func (m *Manager) OnRegister(connID, logicalID string) {
	if logicalID == "" {
		m.logger.Warn().Str("connection_id", connID).Msg("Ignoring register-session without logical id")
		return
	}
	m.registry.RegisterLogicalID(connID, logicalID)
	m.logger.Info().
		Str("connection_id", connID).
		Str("logical_id", logicalID).
		Msg("Session registered")
}

// OnStart begins a new capture, discarding any previous one
func (m *Manager) OnStart(connID string, p StartPayload) {
	generation := m.registry.StartRecording(connID, p.PatientID, p.MimeType)
	m.logger.Info().
		Str("connection_id", connID).
		Str("patient_id", p.PatientID).
		Str("mime_type", audio.BaseMimeType(p.MimeType)).
		Uint64("generation", generation).
		Msg("Recording started")
}

// OnAudio appends one fragment to the current capture
func (m *Manager) OnAudio(connID string, chunk []byte) {
	count := m.registry.AppendChunk(connID, chunk)
	m.logger.Debug().
		Str("connection_id", connID).
		Int("bytes", len(chunk)).
		Int("chunk_count", count).
		Msg("Audio chunk received")
}

// OnStop snapshots the capture and finalizes it in the background. Exactly
// one transcription-result is delivered for every call.
func (m *Manager) OnStop(connID string) {
	snap := m.registry.StopRecording(connID)
	m.logger.Info().
		Str("connection_id", connID).
		Str("logical_id", snap.LogicalID).
		Int("chunk_count", snap.ChunkCount).
		Int("bytes", snap.Bytes).
		Msg("Recording stopped, finalizing")

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		m.logger.Warn().Str("connection_id", connID).Msg("Shutting down, recording not finalized")
		m.router.Deliver(Delivery{
			ConnectionID: snap.ConnectionID,
			LogicalID:    snap.LogicalID,
			Text:         transcript.FailureMessage,
			Failed:       true,
		})
		m.registry.FinishFinalize(snap.ConnectionID, snap.Generation)
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		m.finalize(snap)
	}()
}

// OnDisconnect removes the session. In-flight finalizes are not cancelled.
func (m *Manager) OnDisconnect(connID string) {
	info, _ := m.registry.Get(connID)
	if m.registry.Disconnect(connID) {
		m.logger.Info().
			Str("connection_id", connID).
			Str("state", info.State.String()).
			Dur("connected_for", time.Since(info.ConnectedAt)).
			Msg("Client disconnected")
	}
}

// Wait blocks until every in-flight finalize has delivered
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown stops finalizing new recordings and waits for in-flight ones.
// A stop received afterwards is answered with the generic failure message.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()
	m.Wait()
}

// finalize runs detached from the connection so a disconnect cannot cancel it.
func (m *Manager) finalize(snap Snapshot) {
	logger := m.logger.With().
		Str("connection_id", snap.ConnectionID).
		Str("logical_id", snap.LogicalID).
		Uint64("generation", snap.Generation).
		Str("mime_type", audio.BaseMimeType(snap.MimeType)).
		Logger()

	delivered := false
	deliver := func(text string, failed bool) {
		delivered = true
		m.router.Deliver(Delivery{
			ConnectionID: snap.ConnectionID,
			LogicalID:    snap.LogicalID,
			Text:         text,
			Failed:       failed,
		})
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("panic", fmt.Sprint(r)).Msg("Finalize panicked")
			observability.RecordError("panic", "session")
			if !delivered {
				deliver(transcript.FailureMessage, true)
			}
		}
		m.registry.FinishFinalize(snap.ConnectionID, snap.Generation)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	start := time.Now()
	text, err := m.finalizer.Finalize(ctx, snap.Chunks, snap.MimeType)
	elapsed := time.Since(start)
	observability.RecordFinalize(transcript.Kind(err), elapsed)

	if err != nil {
		logger.Error().
			Err(err).
			Str("kind", transcript.Kind(err)).
			Int("chunk_count", snap.ChunkCount).
			Int("bytes", snap.Bytes).
			Dur("duration", elapsed).
			Msg("Finalize failed")
		observability.RecordError(transcript.Kind(err), "transcript")
		deliver(transcript.UserMessage(err), true)
		return
	}

	logger.Info().
		Int("chunk_count", snap.ChunkCount).
		Int("bytes", snap.Bytes).
		Int("text_length", len(text)).
		Dur("duration", elapsed).
		Msg("Finalize complete")

	deliver(text, false)
	m.persist(snap, text, logger)
}

// persist titles and stores a transcript that was already delivered. Failures
// are only logged.
func (m *Manager) persist(snap Snapshot, text string, logger zerolog.Logger) {
	if m.persister == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	title := m.finalizer.TitleFor(ctx, text)
	id, err := m.persister.SaveTranscript(ctx, snap.PatientID, text, title)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("patient_id", snap.PatientID).
			Msg("Transcript not persisted")
		observability.RecordError("persist", "session")
		return
	}

	logger.Info().
		Str("transcription_id", id).
		Str("title", title).
		Msg("Transcript persisted")
}
