package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/gitmaster-go/internal/session"
)

func openTemp(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestArchive_RecordAndList(t *testing.T) {
	a := openTemp(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	q := session.Message{ID: "m1", Role: session.RoleUser, Content: "What does this repo do?", Timestamp: now}
	r := session.Message{ID: "m2", Role: session.RoleAssistant, Content: "It renders React.", Timestamp: now.Add(time.Second), ReplyTo: "m1"}
	other := session.Message{ID: "m3", Role: session.RoleUser, Content: "unrelated", Timestamp: now}

	require.NoError(t, a.Record(ctx, "s1", q))
	require.NoError(t, a.Record(ctx, "s1", r))
	require.NoError(t, a.Record(ctx, "s2", other))

	got, err := a.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "m1", got[0].ID)
	require.Equal(t, session.RoleUser, got[0].Role)
	require.Empty(t, got[0].ReplyTo)
	require.Equal(t, "m2", got[1].ID)
	require.Equal(t, "m1", got[1].ReplyTo)
	require.True(t, now.Add(time.Second).Equal(got[1].Timestamp))
}

func TestArchive_DuplicateIDFails(t *testing.T) {
	a := openTemp(t)
	msg := session.Message{ID: "dup", Role: session.RoleUser, Content: "x", Timestamp: time.Now()}
	require.NoError(t, a.Record(context.Background(), "s1", msg))
	require.Error(t, a.Record(context.Background(), "s1", msg))
}

// TestArchive_AsChatRecorder wires the archive into a chat the way cmd/gitmaster does.
func TestArchive_AsChatRecorder(t *testing.T) {
	a := openTemp(t)
	chat := session.NewChat("s1", "https://github.com/a/b", stubBackend{}, session.WithRecorder(a))

	_, ok := chat.Ask(context.Background(), "hello")
	require.True(t, ok)

	got, err := a.List(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, chat.Messages()[1].ID, got[1].ID)
}
