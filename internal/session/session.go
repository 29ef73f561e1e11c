// Package session holds per-conversation message history in memory.
//
// A [Store] owns every session. Callers read snapshots and mutate only
// through the store API. Turns on the same session are serialized with
// [Store.Acquire]; turns on different sessions run independently.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"
)

// Role identifies who produced a message.
type Role string

// Message roles.
const (
	RoleUser            Role = "user"
	RoleAssistant       Role = "assistant"
	RoleToolObservation Role = "tool_observation"
)

// ErrSessionBusy is returned by [Store.Acquire] when the context ends
// before the session's in-flight turn finishes.
var ErrSessionBusy = errors.New("session busy")

// ErrEmptyID is returned when a session identifier is empty.
var ErrEmptyID = errors.New("session id is empty")

// ToolObservation records one tool call and its outcome. The message
// Content carries the serialized result envelope.
type ToolObservation struct {
	Name      string         `json:"name"`
	CallID    string         `json:"call_id"`
	Arguments map[string]any `json:"arguments,omitempty"`
	// Round is the dispatch round within the turn, starting at 1.
	// Observations sharing a round were requested together.
	Round   int  `json:"round"`
	Success bool `json:"success"`
}

// Message is one entry in a session's history.
type Message struct {
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Tool      *ToolObservation `json:"tool,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Session is a point-in-time copy of a conversation.
type Session struct {
	ID         string
	Messages   []Message
	CreatedAt  time.Time
	LastActive time.Time
}

// Info summarizes a session for the API.
type Info struct {
	SessionID    string `json:"session_id,omitempty"`
	Exists       bool   `json:"exists"`
	MessageCount int    `json:"message_count"`
}

// Config bounds retention. Zero values disable the corresponding limit.
type Config struct {
	IdleTTL     time.Duration
	MaxSessions int
}

type entry struct {
	messages   []Message
	createdAt  time.Time
	lastActive time.Time

	// turn is a one-slot semaphore held for the duration of a turn.
	turn chan struct{}
	// pending counts turns holding or waiting on the semaphore. Entries
	// with pending turns are never evicted.
	pending int
}

// Store is an in-memory session store safe for concurrent use.
type Store struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewStore creates an empty store.
func NewStore(cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// getOrCreate must be called with s.mu held.
func (s *Store) getOrCreate(id string) *entry {
	if e, ok := s.sessions[id]; ok {
		return e
	}
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.evictOldestLocked(len(s.sessions) - s.cfg.MaxSessions + 1)
	}
	now := s.now()
	e := &entry{
		createdAt:  now,
		lastActive: now,
		turn:       make(chan struct{}, 1),
	}
	s.sessions[id] = e
	return e
}

// GetOrCreate returns a snapshot of the session, creating it if needed.
func (s *Store) GetOrCreate(id string) (*Session, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreate(id)
	return &Session{
		ID:         id,
		Messages:   copyMessages(e.messages),
		CreatedAt:  e.createdAt,
		LastActive: e.lastActive,
	}, nil
}

// Append adds msg to the session, creating the session if needed, and
// returns the new message count.
func (s *Store) Append(id string, msg Message) (int, error) {
	if id == "" {
		return 0, ErrEmptyID
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	if msg.Tool != nil {
		t := *msg.Tool
		t.Arguments = maps.Clone(t.Arguments)
		msg.Tool = &t
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreate(id)
	e.messages = append(e.messages, msg)
	e.lastActive = msg.Timestamp
	return len(e.messages), nil
}

// Messages returns a copy of the session's history, or nil if the
// session does not exist.
func (s *Store) Messages(id string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return copyMessages(e.messages)
}

// Clear empties the session's history but keeps the session. It waits
// for any in-flight turn to release the session first, so a turn never
// appends to a history cleared underneath it. It returns false, with no
// side effects, if the session does not exist.
func (s *Store) Clear(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	e.pending++
	s.mu.Unlock()

	if err := s.lease(ctx, e); err != nil {
		return false, err
	}

	s.mu.Lock()
	e.messages = nil
	e.lastActive = s.now()
	e.pending--
	s.mu.Unlock()
	<-e.turn
	return true, nil
}

// Delete removes the session. A session with a turn in flight is not
// removed and Delete returns false.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || e.pending > 0 {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Info reports whether the session exists and how many messages it holds.
func (s *Store) Info(id string) Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return Info{SessionID: id}
	}
	return Info{SessionID: id, Exists: true, MessageCount: len(e.messages)}
}

// Len returns the number of resident sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Acquire blocks until the caller holds the session's turn lease or ctx
// ends. The session is created if needed. The returned release function
// is idempotent.
func (s *Store) Acquire(ctx context.Context, id string) (func(), error) {
	if id == "" {
		return nil, ErrEmptyID
	}

	s.mu.Lock()
	e := s.getOrCreate(id)
	e.pending++
	s.mu.Unlock()

	if err := s.lease(ctx, e); err != nil {
		return nil, err
	}

	return sync.OnceFunc(func() {
		<-e.turn
		s.mu.Lock()
		e.pending--
		e.lastActive = s.now()
		s.mu.Unlock()
	}), nil
}

// lease takes e's turn slot. The caller must already have counted
// itself in e.pending; on failure the count is given back.
func (s *Store) lease(ctx context.Context, e *entry) error {
	select {
	case e.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		e.pending--
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrSessionBusy, ctx.Err())
	}
}

// Sweep evicts sessions idle longer than the configured TTL, then trims
// the store to MaxSessions by evicting the least recently active idle
// sessions. It returns the number of sessions evicted.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	if s.cfg.IdleTTL > 0 {
		cutoff := s.now().Add(-s.cfg.IdleTTL)
		for id, e := range s.sessions {
			if e.pending == 0 && e.lastActive.Before(cutoff) {
				delete(s.sessions, id)
				evicted++
			}
		}
	}
	if s.cfg.MaxSessions > 0 && len(s.sessions) > s.cfg.MaxSessions {
		evicted += s.evictOldestLocked(len(s.sessions) - s.cfg.MaxSessions)
	}

	if evicted > 0 {
		s.logger.Info("evicted idle sessions",
			"evicted", evicted,
			"remaining", len(s.sessions),
		)
	}
	return evicted
}

// evictOldestLocked removes up to n idle sessions, least recently active
// first. It must be called with s.mu held.
func (s *Store) evictOldestLocked(n int) int {
	evicted := 0
	for evicted < n {
		var oldestID string
		var oldest *entry
		for id, e := range s.sessions {
			if e.pending > 0 {
				continue
			}
			if oldest == nil || e.lastActive.Before(oldest.lastActive) {
				oldestID, oldest = id, e
			}
		}
		if oldest == nil {
			break
		}
		delete(s.sessions, oldestID)
		evicted++
	}
	if evicted > 0 {
		s.logger.Debug("evicted sessions over capacity", "evicted", evicted)
	}
	return evicted
}

func copyMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
