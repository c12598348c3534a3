package session

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/scribe-gateway/internal/transcript"
)

type harness struct {
	manager     *Manager
	emitter     *fakeEmitter
	transcriber *stubTranscriber
	persister   *fakePersister
}

func newHarness(t *testing.T, tr *stubTranscriber) *harness {
	t.Helper()
	em := newFakeEmitter()
	p := &fakePersister{}

	var finalizer *transcript.Assembler
	if tr != nil {
		finalizer = transcript.NewAssembler(tr, nil, zerolog.Nop())
	} else {
		finalizer = transcript.NewAssembler(nil, nil, zerolog.Nop())
	}

	m := NewManager(NewRegistry(), NewRouter(em, zerolog.Nop()), finalizer, p, 5*time.Second, zerolog.Nop())
	return &harness{manager: m, emitter: em, transcriber: tr, persister: p}
}

func TestManager_SuccessDeliversOnceToLogicalID(t *testing.T) {
	h := newHarness(t, &stubTranscriber{text: "Cough resolved. New knee pain."})
	m := h.manager

	m.OnConnect("c1")
	m.OnRegister("c1", "logical-a")
	m.OnStart("c1", StartPayload{PatientID: "p1", MimeType: "audio/webm"})
	m.OnAudio("c1", []byte("abc"))
	m.OnAudio("c1", []byte("def"))
	m.OnStop("c1")
	m.Wait()

	events := h.emitter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "logical-a", events[0].Target)
	assert.True(t, events[0].Logical)
	assert.Equal(t, "Cough resolved. New knee pain.", events[0].Payload.Text)
	assert.True(t, events[0].Payload.IsComplete)

	assert.Equal(t, [][]byte{[]byte("abcdef")}, h.transcriber.Payloads())

	saved := h.persister.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, "p1", saved[0].PatientID)
	assert.Equal(t, "Cough resolved", saved[0].Title)

	info, ok := m.Registry().Get("c1")
	require.True(t, ok)
	assert.Equal(t, StateIdle, info.State)
}

func TestManager_UnregisteredTargetsConnection(t *testing.T) {
	h := newHarness(t, &stubTranscriber{text: "ok"})
	m := h.manager

	m.OnConnect("c1")
	m.OnStart("c1", StartPayload{})
	m.OnAudio("c1", []byte{1})
	m.OnStop("c1")
	m.Wait()

	events := h.emitter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "c1", events[0].Target)
	assert.False(t, events[0].Logical)
}

func TestManager_RegisterAfterStopNotUsed(t *testing.T) {
	tr := &stubTranscriber{text: "ok", started: make(chan struct{}, 1), release: make(chan struct{})}
	h := newHarness(t, tr)
	m := h.manager

	m.OnConnect("c1")
	m.OnStart("c1", StartPayload{})
	m.OnAudio("c1", []byte{1})
	m.OnStop("c1")
	<-tr.started
	m.OnRegister("c1", "late")
	close(tr.release)
	m.Wait()

	events := h.emitter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "c1", events[0].Target)
}

func TestManager_DoubleStartDiscardsFirstCapture(t *testing.T) {
	h := newHarness(t, &stubTranscriber{text: "ok"})
	m := h.manager

	m.OnConnect("c1")
	m.OnStart("c1", StartPayload{})
	m.OnAudio("c1", []byte("stale"))
	m.OnStart("c1", StartPayload{})
	m.OnAudio("c1", []byte("fresh"))
	m.OnStop("c1")
	m.Wait()

	assert.Equal(t, [][]byte{[]byte("fresh")}, h.transcriber.Payloads())
}

func TestManager_EmptyCaptureDeliversVerbatimMessage(t *testing.T) {
	h := newHarness(t, &stubTranscriber{text: "unused"})
	m := h.manager

	m.OnConnect("c1")
	m.OnStart("c1", StartPayload{})
	m.OnStop("c1")
	m.Wait()

	events := h.emitter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "No audio received to transcribe", events[0].Payload.Text)
	assert.True(t, events[0].Payload.IsComplete)
	assert.Empty(t, h.transcriber.Payloads())
	assert.Empty(t, h.persister.Saved())
}

func TestManager_FailuresDeliverGenericMessage(t *testing.T) {
	t.Run("upstream", func(t *testing.T) {
		h := newHarness(t, &stubTranscriber{err: errors.New("503 from upstream")})
		m := h.manager

		m.OnStart("c1", StartPayload{})
		m.OnAudio("c1", []byte{1})
		m.OnStop("c1")
		m.Wait()

		events := h.emitter.Events()
		require.Len(t, events, 1)
		assert.Equal(t, "Error transcribing audio. Please try again.", events[0].Payload.Text)
		assert.Empty(t, h.persister.Saved())
	})

	t.Run("unavailable", func(t *testing.T) {
		h := newHarness(t, nil)
		m := h.manager

		m.OnStart("c1", StartPayload{})
		m.OnAudio("c1", []byte{1})
		m.OnStop("c1")
		m.Wait()

		events := h.emitter.Events()
		require.Len(t, events, 1)
		assert.Equal(t, "Error transcribing audio. Please try again.", events[0].Payload.Text)
	})
}

func TestManager_OneResultPerStop(t *testing.T) {
	h := newHarness(t, &stubTranscriber{text: "ok"})
	m := h.manager

	m.OnConnect("c1")
	for i := 0; i < 3; i++ {
		m.OnStart("c1", StartPayload{})
		m.OnAudio("c1", []byte{byte(i)})
		m.OnStop("c1")
	}
	m.OnStop("c1")
	m.Wait()

	assert.Len(t, h.emitter.Events(), 4)
}

func TestManager_DisconnectAfterStopStillDelivers(t *testing.T) {
	tr := &stubTranscriber{text: "late transcript", started: make(chan struct{}, 1), release: make(chan struct{})}
	h := newHarness(t, tr)
	m := h.manager

	m.OnConnect("c1")
	m.OnRegister("c1", "logical-a")
	m.OnStart("c1", StartPayload{})
	m.OnAudio("c1", []byte{1, 2, 3})
	m.OnStop("c1")

	<-tr.started
	m.OnDisconnect("c1")
	assert.Equal(t, 0, m.Registry().Len())

	close(tr.release)
	m.Wait()

	events := h.emitter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "logical-a", events[0].Target)
	assert.Equal(t, "late transcript", events[0].Payload.Text)
	assert.Equal(t, 0, m.Registry().Len(), "finish must not resurrect the session")
}

func TestManager_ChunksDuringFinalizeStartNewCapture(t *testing.T) {
	tr := &stubTranscriber{text: "ok", started: make(chan struct{}, 2), release: make(chan struct{})}
	h := newHarness(t, tr)
	m := h.manager

	m.OnStart("c1", StartPayload{})
	m.OnAudio("c1", []byte("one"))
	m.OnStop("c1")
	<-tr.started

	m.OnAudio("c1", []byte("two"))
	close(tr.release)
	m.Wait()

	assert.Equal(t, [][]byte{[]byte("one")}, tr.Payloads())
	info, ok := m.Registry().Get("c1")
	require.True(t, ok)
	assert.Equal(t, 1, info.ChunkCount)
}

func TestManager_PersistFailureStillDelivers(t *testing.T) {
	h := newHarness(t, &stubTranscriber{text: "ok"})
	h.persister.err = errors.New("no patient")
	m := h.manager

	m.OnStart("c1", StartPayload{})
	m.OnAudio("c1", []byte{1})
	m.OnStop("c1")
	m.Wait()

	events := h.emitter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].Payload.Text)
}

func TestManager_IgnoresEmptyLogicalID(t *testing.T) {
	h := newHarness(t, &stubTranscriber{text: "ok"})
	h.manager.OnRegister("c1", "")
	assert.Equal(t, 0, h.manager.Registry().Len())
}

func TestManager_DeliversBeforePersisting(t *testing.T) {
	h := newHarness(t, &stubTranscriber{text: "Knee pain improved."})
	h.persister.block = make(chan struct{})
	m := h.manager

	m.OnStart("c1", StartPayload{PatientID: "p1"})
	m.OnAudio("c1", []byte{1})
	m.OnStop("c1")

	require.Eventually(t, func() bool { return len(h.emitter.Events()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Knee pain improved.", h.emitter.Events()[0].Payload.Text)
	assert.Empty(t, h.persister.Saved())

	close(h.persister.block)
	m.Wait()

	require.Len(t, h.persister.Saved(), 1)
	assert.Len(t, h.emitter.Events(), 1)
}

func TestManager_ShutdownWaitsForInFlight(t *testing.T) {
	tr := &stubTranscriber{text: "ok", started: make(chan struct{}, 1), release: make(chan struct{})}
	h := newHarness(t, tr)
	m := h.manager

	m.OnStart("c1", StartPayload{})
	m.OnAudio("c1", []byte{1})
	m.OnStop("c1")
	<-tr.started

	done := make(chan struct{})
	go func() {
		m.Shutdown()
		close(done)
	}()

	assert.Never(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 100*time.Millisecond, 10*time.Millisecond)

	close(tr.release)
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	events := h.emitter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].Payload.Text)
}

func TestManager_StopAfterShutdownAnswersWithFailure(t *testing.T) {
	tr := &stubTranscriber{text: "unused"}
	h := newHarness(t, tr)
	m := h.manager
	m.Shutdown()

	m.OnRegister("c1", "logical-a")
	m.OnStart("c1", StartPayload{})
	m.OnAudio("c1", []byte{1})
	m.OnStop("c1")
	m.Wait()

	events := h.emitter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "logical-a", events[0].Target)
	assert.Equal(t, transcript.FailureMessage, events[0].Payload.Text)
	assert.Empty(t, tr.Payloads())

	info, ok := m.Registry().Get("c1")
	require.True(t, ok)
	assert.Equal(t, StateIdle, info.State)
}
