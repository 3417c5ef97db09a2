package session

import (
	"context"
	"sync"

	"github.com/comigor/gitmaster-go/internal/backend"
)

// fakeBackend mirrors Backend; unset funcs succeed.
type fakeBackend struct {
	CreateSessionFunc func(ctx context.Context) (string, error)
	AnalyzeFunc       func(ctx context.Context, sessionID, githubURL string) error
	SessionStatusFunc func(ctx context.Context, sessionID string) error
	AskFunc           func(ctx context.Context, sessionID, question string) (backend.AskResponse, error)
	DeleteSessionFunc func(ctx context.Context, sessionID string) error

	mu    sync.Mutex
	calls []string
}

func (f *fakeBackend) log(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) CreateSession(ctx context.Context) (string, error) {
	f.log("create")
	if f.CreateSessionFunc != nil {
		return f.CreateSessionFunc(ctx)
	}
	return "session-1", nil
}

func (f *fakeBackend) Analyze(ctx context.Context, sessionID, githubURL string) error {
	f.log("analyze")
	if f.AnalyzeFunc != nil {
		return f.AnalyzeFunc(ctx, sessionID, githubURL)
	}
	return nil
}

func (f *fakeBackend) SessionStatus(ctx context.Context, sessionID string) error {
	f.log("status")
	if f.SessionStatusFunc != nil {
		return f.SessionStatusFunc(ctx, sessionID)
	}
	return nil
}

func (f *fakeBackend) Ask(ctx context.Context, sessionID, question string) (backend.AskResponse, error) {
	f.log("ask")
	if f.AskFunc != nil {
		return f.AskFunc(ctx, sessionID, question)
	}
	return backend.AskResponse{Answer: "answer to " + question}, nil
}

func (f *fakeBackend) DeleteSession(ctx context.Context, sessionID string) error {
	f.log("delete")
	if f.DeleteSessionFunc != nil {
		return f.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}
