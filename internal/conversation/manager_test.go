package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	turns     map[string][]Turn
	appendErr error
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{turns: map[string][]Turn{}}
}

func (f *fakeStore) Append(_ context.Context, t Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.turns[t.SessionID] = append(f.turns[t.SessionID], t)
	return nil
}

func (f *fakeStore) Read(_ context.Context, sessionID string, limit int) ([]Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.turns[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Turn, len(all))
	copy(out, all)
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.turns, sessionID)
	return nil
}

func (f *fakeStore) count(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.turns[sessionID])
}

type fakeGen struct {
	mu        sync.Mutex
	answer    string
	err       error
	histories [][]Turn
	inFlight  int
	maxSeen   int
	hook      func(ctx context.Context, question string)
}

func (g *fakeGen) Generate(ctx context.Context, history []Turn, question, language string) (string, error) {
	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.maxSeen {
		g.maxSeen = g.inFlight
	}
	h := make([]Turn, len(history))
	copy(h, history)
	g.histories = append(g.histories, h)
	hook := g.hook
	g.mu.Unlock()

	if hook != nil {
		hook(ctx, question)
	}

	g.mu.Lock()
	g.inFlight--
	answer, err := g.answer, g.err
	g.mu.Unlock()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "answer to: " + question, nil
	}
	return answer, nil
}

func preseed(s *fakeStore, sessionID string, n int, base time.Time) {
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		s.turns[sessionID] = append(s.turns[sessionID], Turn{
			ID:        fmt.Sprintf("pre-%d", i),
			SessionID: sessionID,
			Role:      role,
			Content:   fmt.Sprintf("prior %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
}

func TestAsk_AppendsBothTurns(t *testing.T) {
	st := newFakeStore()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	preseed(st, "s1", 2, base)

	gen := &fakeGen{answer: "Leaves fall because..."}
	m := NewManager(st, gen, 6)

	answer, err := m.Ask(context.Background(), "s1", "Why do leaves fall?", "en")
	require.NoError(t, err)
	require.Equal(t, "Leaves fall because...", answer)

	turns, err := m.History(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	require.Equal(t, RoleUser, turns[2].Role)
	require.Equal(t, "Why do leaves fall?", turns[2].Content)
	require.Equal(t, RoleAssistant, turns[3].Role)
	require.Equal(t, "Leaves fall because...", turns[3].Content)
	for i := 1; i < len(turns); i++ {
		require.True(t, turns[i].CreatedAt.After(turns[i-1].CreatedAt),
			"turns must be strictly timestamp-ordered")
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	st := newFakeStore()
	m := NewManager(st, &fakeGen{}, 6)

	_, err := m.Ask(context.Background(), "s2", "", "en")
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Zero(t, st.count("s2"), "no turn may be appended on invalid input")

	_, err = m.Ask(context.Background(), "s2", "   \t ", "en")
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Zero(t, st.count("s2"))
}

func TestAsk_GenerationUnavailable(t *testing.T) {
	st := newFakeStore()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	preseed(st, "s3", 2, base)

	m := NewManager(st, &fakeGen{err: errors.New("upstream down")}, 6)

	_, err := m.Ask(context.Background(), "s3", "anything", "en")
	require.ErrorIs(t, err, ErrGenerationUnavailable)
	require.Equal(t, 2, st.count("s3"), "history must be unchanged after a generation failure")
}

func TestAsk_WindowCap(t *testing.T) {
	st := newFakeStore()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	preseed(st, "s4", 10, base)

	gen := &fakeGen{}
	m := NewManager(st, gen, 6)

	_, err := m.Ask(context.Background(), "s4", "one more", "en")
	require.NoError(t, err)

	require.Len(t, gen.histories, 1)
	window := gen.histories[0]
	require.Len(t, window, 6, "context window passed to generation must not exceed K")
	require.Equal(t, "prior 4", window[0].Content, "window must hold the most recent turns")
	require.Equal(t, "prior 9", window[5].Content)
	for i := 1; i < len(window); i++ {
		require.True(t, window[i].CreatedAt.After(window[i-1].CreatedAt))
	}
}

func TestAsk_PersistenceFailedStillAnswers(t *testing.T) {
	st := newFakeStore()
	st.appendErr = errors.New("disk full")
	m := NewManager(st, &fakeGen{answer: "still useful"}, 6)

	answer, err := m.Ask(context.Background(), "s5", "q", "en")
	require.ErrorIs(t, err, ErrPersistenceFailed)
	require.Equal(t, "still useful", answer, "the answer must survive a store failure")
}

func TestAsk_LateAnswerNotPersisted(t *testing.T) {
	st := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGen{answer: "too late"}
	gen.hook = func(context.Context, string) { cancel() }
	m := NewManager(st, gen, 6)

	_, err := m.Ask(ctx, "s6", "q", "en")
	require.Error(t, err)
	require.Zero(t, st.count("s6"), "an answer arriving after cancellation must not be persisted")
}

func TestHistory_UnknownSession(t *testing.T) {
	m := NewManager(newFakeStore(), &fakeGen{}, 6)
	turns, err := m.History(context.Background(), "never-seen")
	require.NoError(t, err)
	require.NotNil(t, turns)
	require.Empty(t, turns)
}

func TestAsk_SameSessionSerialized(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGen{}
	gen.hook = func(context.Context, string) { time.Sleep(10 * time.Millisecond) }
	m := NewManager(st, gen, 10)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Ask(context.Background(), "shared", fmt.Sprintf("q%d", i), "en")
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, gen.maxSeen, "concurrent asks on one session must not overlap")
	turns, err := m.History(context.Background(), "shared")
	require.NoError(t, err)
	require.Len(t, turns, 8)
	for i, tr := range turns {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		require.Equal(t, want, tr.Role, "exchanges must not interleave")
	}
}

func TestAsk_DifferentSessionsIndependent(t *testing.T) {
	st := newFakeStore()
	release := make(chan struct{})
	gen := &fakeGen{}
	gen.hook = func(_ context.Context, question string) {
		if question == "slow" {
			<-release
		}
	}
	m := NewManager(st, gen, 6)

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, err := m.Ask(context.Background(), "a", "slow", "en")
		require.NoError(t, err)
	}()

	// Session b must complete while a's generation is still in flight.
	fastDone := make(chan struct{})
	go func() {
		defer close(fastDone)
		_, err := m.Ask(context.Background(), "b", "fast", "en")
		require.NoError(t, err)
	}()

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("independent session was blocked by an unrelated in-flight ask")
	}
	close(release)
	<-slowDone
}

func TestEvictStale(t *testing.T) {
	st := newFakeStore()
	m := NewManager(st, &fakeGen{}, 6)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	m.now = func() time.Time { return clock }

	_, err := m.Ask(context.Background(), "old", "q", "en")
	require.NoError(t, err)

	clock = base.Add(21 * time.Minute)
	_, err = m.Ask(context.Background(), "fresh", "q", "en")
	require.NoError(t, err)

	// "old" is 31 minutes idle, "fresh" only 10.
	now := base.Add(31 * time.Minute)
	removed := m.EvictStale(context.Background(), now, 30*time.Minute)
	require.Equal(t, 1, removed)
	require.Zero(t, st.count("old"), "evicted session turns must be deleted from the store")
	require.Equal(t, 2, st.count("fresh"), "active session must be untouched")

	// An evicted identifier starts over as a new session.
	clock = now
	_, err = m.Ask(context.Background(), "old", "hello again", "en")
	require.NoError(t, err)
	require.Equal(t, 2, st.count("old"))
}

func TestEvictStale_DeleteFailureSkipsSession(t *testing.T) {
	st := newFakeStore()
	m := NewManager(st, &fakeGen{}, 6)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	m.now = func() time.Time { return clock }

	_, err := m.Ask(context.Background(), "stuck", "q", "en")
	require.NoError(t, err)

	st.deleteErr = errors.New("store offline")
	removed := m.EvictStale(context.Background(), base.Add(time.Hour), 30*time.Minute)
	require.Zero(t, removed, "a failed delete must be skipped, not counted")

	st.deleteErr = nil
	removed = m.EvictStale(context.Background(), base.Add(time.Hour), 30*time.Minute)
	require.Equal(t, 1, removed, "the next sweep retries the session")
}
