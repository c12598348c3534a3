package session

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_PrefersLogicalID(t *testing.T) {
	em := newFakeEmitter()
	r := NewRouter(em, zerolog.Nop())

	ok := r.Deliver(Delivery{ConnectionID: "c1", LogicalID: "logical-a", Text: "hello"})

	assert.True(t, ok)
	events := em.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "logical-a", events[0].Target)
	assert.True(t, events[0].Logical)
	assert.Equal(t, EventTranscriptionResult, events[0].Event)
	assert.Equal(t, TranscriptionResult{Text: "hello", IsComplete: true}, events[0].Payload)
}

func TestRouter_FallsBackToConnection(t *testing.T) {
	em := newFakeEmitter()
	r := NewRouter(em, zerolog.Nop())

	r.Deliver(Delivery{ConnectionID: "c1", Text: "hello"})

	events := em.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "c1", events[0].Target)
	assert.False(t, events[0].Logical)
}

func TestRouter_FailureNotRetried(t *testing.T) {
	em := newFakeEmitter()
	em.unreachable["logical-a"] = true
	r := NewRouter(em, zerolog.Nop())

	ok := r.Deliver(Delivery{ConnectionID: "c1", LogicalID: "logical-a", Text: "hello"})

	assert.False(t, ok)
	assert.Empty(t, em.Events(), "no fallback to the connection id and no retry")
}

func TestDelivery_Target(t *testing.T) {
	id, logical := Delivery{ConnectionID: "c1", LogicalID: "l1"}.Target()
	assert.Equal(t, "l1", id)
	assert.True(t, logical)

	id, logical = Delivery{ConnectionID: "c1"}.Target()
	assert.Equal(t, "c1", id)
	assert.False(t, logical)
}
