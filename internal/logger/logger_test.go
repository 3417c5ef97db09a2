package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	SetLevel("DEBUG")
	require.Equal(t, slog.LevelDebug, levelVar.Level())
	SetLevel("warn")
	require.Equal(t, slog.LevelWarn, levelVar.Level())
	SetLevel("bogus")
	require.Equal(t, slog.LevelInfo, levelVar.Level())
}

func TestInit_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitmaster.log")
	t.Cleanup(func() {
		SetLevel("info")
		SetOutput(os.Stdout)
	})

	closer := Init(io.Discard, "debug", path)
	L.Debug("session validated", "session_id", "abc")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"session_id":"abc"`)
}

func TestInit_WithoutFile(t *testing.T) {
	t.Cleanup(func() {
		SetLevel("info")
		SetOutput(os.Stdout)
	})
	closer := Init(os.Stderr, "error", "")
	require.NoError(t, closer.Close())
	require.Equal(t, slog.LevelError, levelVar.Level())
}
