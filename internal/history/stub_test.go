package history

import (
	"context"

	"github.com/comigor/gitmaster-go/internal/backend"
)

type stubBackend struct{}

func (stubBackend) CreateSession(context.Context) (string, error) { return "s1", nil }
func (stubBackend) Analyze(context.Context, string, string) error { return nil }
func (stubBackend) SessionStatus(context.Context, string) error { return nil }
func (stubBackend) DeleteSession(context.Context, string) error { return nil }
func (stubBackend) Ask(context.Context, string, string) (backend.AskResponse, error) {
	return backend.AskResponse{Answer: "hi"}, nil
}
