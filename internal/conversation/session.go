package conversation

import (
	"sync"
	"time"

	"github.com/qmuntal/stateless"
)

// Session lifecycle states.
type SessionState stateless.State

var (
	StateNew     SessionState = "New"
	StateActive  SessionState = "Active"
	StateEvicted SessionState = "Evicted"
)

// Session lifecycle triggers.
type SessionTrigger stateless.Trigger

var (
	TriggerExchange SessionTrigger = "Exchange"
	TriggerEvict    SessionTrigger = "Evict"
)

// session tracks one conversation thread. Its mutex serializes the
// whole read-history, generate, append sequence so concurrent Ask
// calls on the same identifier cannot interleave. The lifecycle FSM
// enforces New -> Active -> Evicted with no way back from Evicted.
type session struct {
	id string

	mu           sync.Mutex
	fsm          *stateless.StateMachine
	createdAt    time.Time
	lastActivity time.Time
}

func newSession(id string, now time.Time) *session {
	fsm := stateless.NewStateMachine(StateNew)
	fsm.Configure(StateNew).
		Permit(TriggerExchange, StateActive).
		Permit(TriggerEvict, StateEvicted)
	fsm.Configure(StateActive).
		PermitReentry(TriggerExchange).
		Permit(TriggerEvict, StateEvicted)
	fsm.Configure(StateEvicted)

	return &session{
		id:           id,
		fsm:          fsm,
		createdAt:    now,
		lastActivity: now,
	}
}

// exchange records a completed Q&A round. Caller holds s.mu.
func (s *session) exchange(now time.Time) error {
	if err := s.fsm.Fire(TriggerExchange); err != nil {
		return err
	}
	s.lastActivity = now
	return nil
}

// evict moves the session to its terminal state. Caller holds s.mu.
func (s *session) evict() error {
	return s.fsm.Fire(TriggerEvict)
}

// state reports the current lifecycle state. Caller holds s.mu.
func (s *session) state() SessionState {
	return SessionState(s.fsm.MustState())
}
