package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/gitmaster-go/internal/config"
)

type recorded struct {
	method      string
	path        string
	contentType string
	body        map[string]string
}

type callLog struct {
	mu    sync.Mutex
	calls []recorded
}

func (l *callLog) at(i int) recorded {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[i]
}

func (l *callLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func newBackend(t *testing.T, handler http.HandlerFunc) (*Client, *callLog) {
	t.Helper()
	log := &callLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.EscapedPath(), contentType: r.Header.Get("Content-Type")}
		if r.ContentLength > 0 {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		log.mu.Lock()
		log.calls = append(log.calls, rec)
		log.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.BackendConfig{BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	return c, log
}

func TestCreateSession(t *testing.T) {
	c, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"session_id":"abc-123"}`))
	})

	id, err := c.CreateSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc-123", id)
	require.Equal(t, 1, calls.len())
	require.Equal(t, http.MethodPost, calls.at(0).method)
	require.Equal(t, "/create-session", calls.at(0).path)
	require.Empty(t, calls.at(0).body)
}

func TestCreateSession_MissingID(t *testing.T) {
	c, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := c.CreateSession(context.Background())
	require.ErrorIs(t, err, ErrMissingSessionID)
}

func TestCreateSession_ServerError(t *testing.T) {
	c, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.CreateSession(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	require.Equal(t, "create_session", statusErr.Op)
	require.Equal(t, "boom", statusErr.Body)
}

func TestAnalyze(t *testing.T) {
	c, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	err := c.Analyze(context.Background(), "s1", "https://github.com/vercel/next.js")
	require.NoError(t, err)
	got := calls.at(0)
	require.Equal(t, http.MethodPost, got.method)
	require.Equal(t, "/analyze/s1", got.path)
	require.Equal(t, "application/json", got.contentType)
	require.Equal(t, map[string]string{"github_url": "https://github.com/vercel/next.js"}, got.body)
}

func TestSessionStatus(t *testing.T) {
	c, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session-status/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	require.NoError(t, c.SessionStatus(context.Background(), "live"))
	err := c.SessionStatus(context.Background(), "gone")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	require.Equal(t, http.MethodGet, calls.at(0).method)
}

func TestAsk(t *testing.T) {
	c, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer":"It is a React framework."}`))
	})

	resp, err := c.Ask(context.Background(), "s1", "What does this repo do?")
	require.NoError(t, err)
	require.Equal(t, "It is a React framework.", resp.Answer)
	require.Equal(t, "/ask/s1", calls.at(0).path)
	require.Equal(t, map[string]string{"question": "What does this repo do?"}, calls.at(0).body)
}

func TestAsk_FallbackField(t *testing.T) {
	c, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"fallback text"}`))
	})

	resp, err := c.Ask(context.Background(), "s1", "q")
	require.NoError(t, err)
	require.Empty(t, resp.Answer)
	require.Equal(t, "fallback text", resp.Message)
}

func TestAsk_InvalidJSON(t *testing.T) {
	c, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	})

	_, err := c.Ask(context.Background(), "s1", "q")
	require.Error(t, err)
}

func TestDeleteSession_EscapesID(t *testing.T) {
	c, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteSession(context.Background(), "a/b"))
	require.Equal(t, http.MethodDelete, calls.at(0).method)
	require.Equal(t, "/session/a%2Fb", calls.at(0).path)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClientWithHTTP(srv.URL, &http.Client{Timeout: time.Second})
	_, err := c.CreateSession(context.Background())
	require.Error(t, err)
	var statusErr *StatusError
	require.False(t, errors.As(err, &statusErr))
}
