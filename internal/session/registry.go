// Package session tracks one recording state machine per client connection
// and routes each finished transcript back to the right client.
package session

import (
	"sync"
	"time"

	"github.com/lexiqai/scribe-gateway/internal/audio"
	"github.com/lexiqai/scribe-gateway/internal/observability"
)

// State is the recording state of a session. A removed session is terminated.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

type entry struct {
	connectionID string
	logicalID    string
	patientID    string
	mimeType     string
	state        State
	generation   uint64
	connectedAt  time.Time
	capture      *audio.Capture
	metrics      *observability.SessionMetrics
}

// Info is a read-only view of one session.
type Info struct {
	ConnectionID string
	LogicalID    string
	PatientID    string
	MimeType     string
	State        State
	ChunkCount   int
	Bytes        int
	Generation   uint64
	ConnectedAt  time.Time
}

// Snapshot is the immutable hand-off from stop-recording to finalize. It owns
// its chunks; nothing appended to the session afterwards reaches it.
type Snapshot struct {
	ConnectionID string
	LogicalID    string
	PatientID    string
	MimeType     string
	Chunks       [][]byte
	ChunkCount   int
	Bytes        int
	Generation   uint64
}

// Registry maps connection ids to sessions. Every operation takes the single
// registry lock for the duration of one map mutation only.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
	}
}

// ensureLocked returns the session for connID, creating it if needed.
// Caller must hold r.mu.
func (r *Registry) ensureLocked(connID string) *entry {
	if s, ok := r.sessions[connID]; ok {
		return s
	}

	s := &entry{
		connectionID: connID,
		state:        StateIdle,
		connectedAt:  time.Now(),
		capture:      audio.NewCapture(),
		metrics:      observability.NewSessionMetrics(connID),
	}
	s.metrics.RecordConnect()
	r.sessions[connID] = s
	return s
}

// Connect creates an empty session. Calling it again for the same id is a no-op.
func (r *Registry) Connect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(connID)
}

// RegisterLogicalID binds a client-chosen stable id to the connection. The
// latest registration wins.
func (r *Registry) RegisterLogicalID(connID, logicalID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(connID).logicalID = logicalID
}

// StartRecording begins a fresh capture, discarding anything buffered so far.
// It is legal while already recording.
func (r *Registry) StartRecording(connID, patientID, mimeType string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.ensureLocked(connID)
	s.capture.Reset()
	s.patientID = patientID
	s.mimeType = mimeType
	s.state = StateRecording
	s.generation++
	s.metrics.RecordRecordingStart()
	return s.generation
}

// AppendChunk adds bytes to the current capture, creating the session for a
// stray chunk rather than dropping it. It returns the capture's chunk count.
func (r *Registry) AppendChunk(connID string, chunk []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.ensureLocked(connID)
	s.capture.Append(chunk)
	s.metrics.RecordAudioBytes(len(chunk))
	return s.capture.Count()
}

// StopRecording moves the current capture into a Snapshot and leaves the
// session finalizing with an empty capture.
func (r *Registry) StopRecording(connID string) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.ensureLocked(connID)
	chunks := s.capture.Take()
	s.state = StateFinalizing
	s.generation++

	size := 0
	for _, ch := range chunks {
		size += len(ch)
	}

	return Snapshot{
		ConnectionID: s.connectionID,
		LogicalID:    s.logicalID,
		PatientID:    s.patientID,
		MimeType:     s.mimeType,
		Chunks:       chunks,
		ChunkCount:   len(chunks),
		Bytes:        size,
		Generation:   s.generation,
	}
}

// FinishFinalize returns the session to idle if no start or stop happened
// since the snapshot was taken. It reports whether the state changed.
func (r *Registry) FinishFinalize(connID string, generation uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok || s.generation != generation || s.state != StateFinalizing {
		return false
	}
	s.state = StateIdle
	return true
}

// Disconnect removes the session and its buffered audio. Finalizes already in
// flight keep their snapshot.
func (r *Registry) Disconnect(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return false
	}
	s.capture.Reset()
	s.metrics.RecordDisconnect()
	delete(r.sessions, connID)
	return true
}

// Get returns a view of the session for connID.
func (r *Registry) Get(connID string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return Info{}, false
	}
	return Info{
		ConnectionID: s.connectionID,
		LogicalID:    s.logicalID,
		PatientID:    s.patientID,
		MimeType:     s.mimeType,
		State:        s.state,
		ChunkCount:   s.capture.Count(),
		Bytes:        s.capture.Len(),
		Generation:   s.generation,
		ConnectedAt:  s.connectedAt,
	}, true
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
