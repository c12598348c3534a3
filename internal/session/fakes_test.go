package session

import (
	"context"
	"errors"
	"sync"
)

var errNoRecipients = errors.New("no recipients")

type emitted struct {
	Target  string
	Logical bool
	Event   string
	Payload TranscriptionResult
}

// fakeEmitter records every emit. Ids listed in unreachable fail.
type fakeEmitter struct {
	mu          sync.Mutex
	events      []emitted
	unreachable map[string]bool
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{unreachable: make(map[string]bool)}
}

func (f *fakeEmitter) record(target string, logical bool, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable[target] {
		return errNoRecipients
	}
	f.events = append(f.events, emitted{
		Target:  target,
		Logical: logical,
		Event:   event,
		Payload: payload.(TranscriptionResult),
	})
	return nil
}

func (f *fakeEmitter) EmitToSession(logicalID, event string, payload any) error {
	return f.record(logicalID, true, event, payload)
}

func (f *fakeEmitter) EmitToConnection(connectionID, event string, payload any) error {
	return f.record(connectionID, false, event, payload)
}

func (f *fakeEmitter) Events() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emitted(nil), f.events...)
}

// stubTranscriber records payloads and optionally blocks until released.
type stubTranscriber struct {
	mu       sync.Mutex
	payloads [][]byte
	text     string
	err      error
	started  chan struct{}
	release  chan struct{}
}

func (s *stubTranscriber) Transcribe(ctx context.Context, audio []byte, _ string) (string, error) {
	s.mu.Lock()
	s.payloads = append(s.payloads, append([]byte(nil), audio...))
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func (s *stubTranscriber) Payloads() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.payloads...)
}

type savedTranscript struct {
	PatientID string
	Content   string
	Title     string
}

// fakePersister records saves. A non-nil block holds every save until closed.
type fakePersister struct {
	mu    sync.Mutex
	saved []savedTranscript
	err   error
	block chan struct{}
}

func (f *fakePersister) SaveTranscript(ctx context.Context, patientID, content, title string) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, savedTranscript{patientID, content, title})
	return "tx-1", nil
}

func (f *fakePersister) Saved() []savedTranscript {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]savedTranscript(nil), f.saved...)
}
