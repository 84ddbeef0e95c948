// Package store provides the durable turn store collaborator with
// SQLite, Postgres and in-memory backends. All backends return turns
// oldest-to-newest and treat a non-positive read limit as "all".
package store

import (
	"context"
	"sync"

	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/conversation"
)

// Memory is a mutex-guarded in-process store. It backs tests and the
// "memory" driver for running without a database.
type Memory struct {
	mu    sync.Mutex
	turns map[string][]conversation.Turn
}

func NewMemory() *Memory {
	return &Memory{turns: make(map[string][]conversation.Turn)}
}

func (m *Memory) Append(_ context.Context, t conversation.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[t.SessionID] = append(m.turns[t.SessionID], t)
	return nil
}

func (m *Memory) Read(_ context.Context, sessionID string, limit int) ([]conversation.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.turns[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]conversation.Turn, len(all))
	copy(out, all)
	return out, nil
}

func (m *Memory) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, sessionID)
	return nil
}

func (m *Memory) Close() error { return nil }
