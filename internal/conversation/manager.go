// Package conversation implements the multi-turn conversational memory
// of the tutor: it keeps a bounded context window per session, injects
// it into every generation call, and persists each completed exchange.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/logger"
)

// Generator is the external text-generation collaborator. Given the
// bounded prior history and the new question it returns the answer
// text. It is stateless and non-deterministic.
type Generator interface {
	Generate(ctx context.Context, history []Turn, question, language string) (string, error)
}

// Store is the durable turn store collaborator.
type Store interface {
	Append(ctx context.Context, t Turn) error
	Read(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	Delete(ctx context.Context, sessionID string) error
}

// Manager coordinates sessions: it serializes exchanges per session,
// bounds the context window to the configured size, and evicts
// sessions after inactivity. Different sessions never share a lock.
type Manager struct {
	store  Store
	gen    Generator
	window int

	mu       sync.RWMutex
	sessions map[string]*session

	now func() time.Time
}

// DefaultWindow is the context window size used when the configured
// value is missing or non-positive.
const DefaultWindow = 6

// NewManager creates a Manager with the given collaborators and
// context window size.
func NewManager(store Store, gen Generator, window int) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Manager{
		store:    store,
		gen:      gen,
		window:   window,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// acquire returns the live session for id, creating it on first use,
// with its mutex held. Evicted entries found under the map lock are
// replaced so an evicted identifier starts over as a fresh session.
func (m *Manager) acquire(id string) *session {
	for {
		m.mu.Lock()
		s, ok := m.sessions[id]
		if !ok {
			s = newSession(id, m.now())
			m.sessions[id] = s
		}
		m.mu.Unlock()

		s.mu.Lock()
		if s.state() != StateEvicted {
			return s
		}
		s.mu.Unlock()

		m.mu.Lock()
		if m.sessions[id] == s {
			delete(m.sessions, id)
		}
		m.mu.Unlock()
	}
}

// Ask answers question within the session's context. It reads up to
// the window of prior turns, delegates to the generator, and persists
// the user and assistant turns of the completed exchange.
//
// An empty question fails with ErrInvalidInput. A generator failure
// fails with ErrGenerationUnavailable; nothing is persisted. If the
// store rejects the append after a successful generation, the answer
// is still returned together with an error wrapping
// ErrPersistenceFailed.
func (m *Manager) Ask(ctx context.Context, sessionID, question, language string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("%w: empty session id", ErrInvalidInput)
	}
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: empty question", ErrInvalidInput)
	}

	s := m.acquire(sessionID)
	defer s.mu.Unlock()

	history, err := m.store.Read(ctx, sessionID, m.window)
	if err != nil {
		// Generation can still proceed; the window is merely empty.
		logger.L.Warn("history read failed, answering without context", "session_id", sessionID, "error", err)
		history = nil
	}

	answer, err := m.gen.Generate(ctx, history, question, language)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	if ctx.Err() != nil {
		// The caller has already given up; a late answer must not be
		// persisted behind its back.
		return "", ctx.Err()
	}

	askedAt := m.now()
	answeredAt := m.now()
	if !answeredAt.After(askedAt) {
		answeredAt = askedAt.Add(time.Nanosecond)
	}
	userTurn := Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      RoleUser,
		Content:   question,
		Language:  language,
		CreatedAt: askedAt,
	}
	assistantTurn := Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      RoleAssistant,
		Content:   answer,
		Language:  language,
		CreatedAt: answeredAt,
	}

	if err := s.exchange(answeredAt); err != nil {
		return "", fmt.Errorf("session %s lifecycle: %w", sessionID, err)
	}

	if err := m.store.Append(ctx, userTurn); err != nil {
		return answer, fmt.Errorf("%w: user turn: %v", ErrPersistenceFailed, err)
	}
	if err := m.store.Append(ctx, assistantTurn); err != nil {
		return answer, fmt.Errorf("%w: assistant turn: %v", ErrPersistenceFailed, err)
	}
	return answer, nil
}

// History returns the most recent turns of a session, oldest first,
// bounded by the context window size. Unknown sessions yield an empty
// slice, never an error.
func (m *Manager) History(ctx context.Context, sessionID string) ([]Turn, error) {
	turns, err := m.store.Read(ctx, sessionID, m.window)
	if err != nil {
		logger.L.Warn("history read failed", "session_id", sessionID, "error", err)
		return []Turn{}, nil
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}

// EvictStale removes every session whose last activity predates now by
// more than inactivityLimit and deletes its turns from the store. It
// returns the number of sessions evicted. Store delete failures are
// logged and the session is kept for the next sweep; they never abort
// the sweep.
func (m *Manager) EvictStale(ctx context.Context, now time.Time, inactivityLimit time.Duration) int {
	cutoff := now.Add(-inactivityLimit)

	m.mu.RLock()
	candidates := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.RUnlock()

	evicted := 0
	for _, s := range candidates {
		s.mu.Lock()
		if s.state() == StateEvicted || s.lastActivity.After(cutoff) {
			s.mu.Unlock()
			continue
		}
		if err := m.store.Delete(ctx, s.id); err != nil {
			logger.L.Warn("evict sweep: store delete failed, skipping session", "session_id", s.id, "error", err)
			s.mu.Unlock()
			continue
		}
		if err := s.evict(); err != nil {
			logger.L.Warn("evict sweep: lifecycle transition failed", "session_id", s.id, "error", err)
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		m.mu.Lock()
		if m.sessions[s.id] == s {
			delete(m.sessions, s.id)
		}
		m.mu.Unlock()
		evicted++
	}
	return evicted
}
