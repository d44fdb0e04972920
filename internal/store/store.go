package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"formvoice/agent/internal/types"
)

var (
	ErrFormExists   = errors.New("form already exists")
	ErrFormNotFound = errors.New("form not found")
)

// Store keeps registered forms and a capped event log per session.
type Store struct {
	mu     sync.RWMutex
	forms  map[string]*types.Form
	events map[string][]types.Event
}

func New() *Store {
	return &Store{
		forms:  make(map[string]*types.Form),
		events: make(map[string][]types.Event),
	}
}

func (s *Store) CreateForm(f *types.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[f.ID]; ok {
		return ErrFormExists
	}
	s.forms[f.ID] = f
	return nil
}

// GetForm returns a copy so a running session never observes later edits.
func (s *Store) GetForm(id string) (types.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.forms[id]
	if !ok {
		return types.Form{}, ErrFormNotFound
	}
	out := *f
	out.Fields = append([]types.Field(nil), f.Fields...)
	out.Questions = make(map[string]string, len(f.Questions))
	for k, v := range f.Questions {
		out.Questions[k] = v
	}
	return out, nil
}

func (s *Store) ListFormIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.forms))
	for id := range s.forms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Store) AppendEvent(sessionID, typ string, payload map[string]any) types.Event {
	evt := types.Event{Type: typ, Ts: time.Now().UTC(), Payload: payload}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[sessionID] = append(s.events[sessionID], evt)
	// Cap total events per session to avoid unbounded growth
	const maxEvents = 200
	if l := len(s.events[sessionID]); l > maxEvents {
		// Keep space for a single truncation warning so the total stays at maxEvents
		keep := maxEvents - 1
		dropped := l - keep
		s.events[sessionID] = append([]types.Event(nil), s.events[sessionID][l-keep:]...)
		warn := types.Event{Type: "events_truncated", Ts: time.Now().UTC(), Payload: map[string]any{"session_id": sessionID, "dropped": dropped, "kept": keep}}
		s.events[sessionID] = append(s.events[sessionID], warn)
	}
	return evt
}

func (s *Store) ListEvents(sessionID string) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[sessionID]
	out := make([]types.Event, len(src))
	copy(out, src)
	return out
}

func (s *Store) HasSession(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.events[sessionID]
	return ok
}
