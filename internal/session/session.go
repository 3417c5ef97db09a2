// Package session drives one repository analysis session against the Analysis Backend:
// creation and analysis, validation, question/answer exchange and advisory cleanup.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/gitmaster-go/internal/backend"
)

// Backend is the subset of backend.Client the session layer uses; it is easy to mock in tests.
type Backend interface {
	CreateSession(ctx context.Context) (string, error)
	Analyze(ctx context.Context, sessionID, githubURL string) error
	SessionStatus(ctx context.Context, sessionID string) error
	Ask(ctx context.Context, sessionID, question string) (backend.AskResponse, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation. ReplyTo links an assistant message to the
// user message it answers.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ReplyTo   string    `json:"reply_to,omitempty"`
}

// newMessageID returns a time-ordered UUIDv7.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Level is the severity of a Notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is a transient, user-facing notification.
type Notice struct {
	Level       Level  `json:"level"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Notifier receives notices as they happen.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Notifier = NotifierFunc(func(Notice) {})

// NoticeBuffer collects notices until a front end drains them.
type NoticeBuffer struct {
	mu      sync.Mutex
	notices []Notice
}

func (b *NoticeBuffer) Notify(n Notice) {
	b.mu.Lock()
	b.notices = append(b.notices, n)
	b.mu.Unlock()
}

// Drain returns the pending notices and empties the buffer.
func (b *NoticeBuffer) Drain() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.notices
	b.notices = nil
	return out
}
