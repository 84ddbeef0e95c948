package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/conversation"
)

func turn(sessionID string, role conversation.Role, content string, at time.Time) conversation.Turn {
	return conversation.Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Language:  "en",
		CreatedAt: at,
	}
}

// roundTrip exercises the Store contract shared by all backends.
func roundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	got, err := s.Read(ctx, "missing", 10)
	require.NoError(t, err)
	require.Empty(t, got, "unknown session must read as empty, not error")

	contents := []string{"q1", "a1", "q2", "a2", "q3", "a3"}
	for i, c := range contents {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		require.NoError(t, s.Append(ctx, turn("s1", role, c, base.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, s.Append(ctx, turn("s2", conversation.RoleUser, "other session", base)))

	all, err := s.Read(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, all, 6)
	for i, tr := range all {
		require.Equal(t, contents[i], tr.Content, "turns must come back oldest-to-newest")
		require.Equal(t, "s1", tr.SessionID)
	}

	limited, err := s.Read(ctx, "s1", 4)
	require.NoError(t, err)
	require.Len(t, limited, 4)
	require.Equal(t, []string{"q2", "a2", "q3", "a3"},
		[]string{limited[0].Content, limited[1].Content, limited[2].Content, limited[3].Content},
		"limit must keep the most recent turns, still chronological")

	require.NoError(t, s.Delete(ctx, "s1"))
	gone, err := s.Read(ctx, "s1", 0)
	require.NoError(t, err)
	require.Empty(t, gone)

	kept, err := s.Read(ctx, "s2", 0)
	require.NoError(t, err)
	require.Len(t, kept, 1, "delete must not touch other sessions")
}

func TestMemoryStore(t *testing.T) {
	roundTrip(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "turns.db"))
	require.NoError(t, err)
	defer s.Close()
	roundTrip(t, s)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "cassandra", "")
	require.Error(t, err)
}
