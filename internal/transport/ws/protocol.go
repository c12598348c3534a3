// Package ws carries recording sessions over WebSocket connections.
//
// Every text frame is an envelope {"event": "...", "data": {...}}. Binary
// frames are taken as audio-data chunks.
package ws

import "encoding/json"

// Client events.
const (
	EventRegisterSession = "register-session"
	EventStartRecording  = "start-recording"
	EventAudioData       = "audio-data"
	EventStopRecording   = "stop-recording"
)

// Server events. Transcription results are emitted by the session router.
const (
	EventError = "error"
)

// Envelope is an inbound frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// RegisterPayload binds a connection to a logical session id. Older clients
// send it as sessionId.
type RegisterPayload struct {
	LogicalID string `json:"logicalId"`
	SessionID string `json:"sessionId"`
}

// ID returns the logical id, preferring logicalId over sessionId.
func (p RegisterPayload) ID() string {
	if p.LogicalID != "" {
		return p.LogicalID
	}
	return p.SessionID
}

// AudioPayload carries one chunk. JSON clients send it base64 encoded.
type AudioPayload struct {
	AudioChunk []byte `json:"audioChunk"`
}

// ErrorPayload reports a rejected frame to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}
