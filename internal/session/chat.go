package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/comigor/gitmaster-go/internal/backend"
	"github.com/comigor/gitmaster-go/internal/logger"
)

// Validity is the client's view of whether a session can still be used.
type Validity string

const (
	ValidityUnchecked Validity = "unchecked"
	ValidityValid     Validity = "valid"
	ValidityInvalid   Validity = "invalid" // Terminal for the Chat instance
)

type validityTrigger string

const (
	triggerStatusConfirmed   validityTrigger = "StatusConfirmed"
	triggerStatusRejected    validityTrigger = "StatusRejected"
	triggerAnalysisSucceeded validityTrigger = "AnalysisSucceeded"
)

const (
	fallbackAnswer = "I couldn't process that question. Please try again."
	apologyAnswer  = "Sorry, I encountered an error while processing your question. Please try again."

	defaultCleanupTimeout = 5 * time.Second
)

// Recorder receives a copy of every message appended to a chat.
type Recorder interface {
	Record(ctx context.Context, sessionID string, msg Message) error
}

// ChatOption configures a Chat.
type ChatOption func(*Chat)

// WithRecorder archives every appended message.
func WithRecorder(r Recorder) ChatOption {
	return func(c *Chat) { c.recorder = r }
}

// WithCleanupTimeout bounds the advisory delete sent by End.
func WithCleanupTimeout(d time.Duration) ChatOption {
	return func(c *Chat) {
		if d > 0 {
			c.cleanupTimeout = d
		}
	}
}

// Chat is the question/answer side of a session. It is safe for concurrent use.
type Chat struct {
	id             string
	repositoryURL  string
	backend        Backend
	recorder       Recorder
	cleanupTimeout time.Duration
	notices        NoticeBuffer

	mu       sync.Mutex
	messages []Message
	validity *stateless.StateMachine
}

// NewChat creates a chat for sessionID in the unchecked state. repositoryURL is only
// kept for display.
func NewChat(sessionID, repositoryURL string, b Backend, opts ...ChatOption) *Chat {
	c := &Chat{
		id:             sessionID,
		repositoryURL:  repositoryURL,
		backend:        b,
		cleanupTimeout: defaultCleanupTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.validity = c.newValidityMachine()
	return c
}

func (c *Chat) newValidityMachine() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(ValidityUnchecked)

	fsm.Configure(ValidityUnchecked).
		Permit(triggerStatusConfirmed, ValidityValid).
		Permit(triggerAnalysisSucceeded, ValidityValid).
		Permit(triggerStatusRejected, ValidityInvalid)

	fsm.Configure(ValidityValid).
		Ignore(triggerStatusConfirmed).
		Ignore(triggerAnalysisSucceeded).
		Permit(triggerStatusRejected, ValidityInvalid)

	fsm.Configure(ValidityInvalid).
		OnEntry(func(_ context.Context, args ...any) error {
			if len(args) > 0 {
				if n, ok := args[0].(Notice); ok {
					c.notices.Notify(n)
				}
			}
			logger.L.Info("session marked invalid", "session_id", c.id)
			return nil
		}).
		Ignore(triggerStatusConfirmed).
		Ignore(triggerAnalysisSucceeded).
		Ignore(triggerStatusRejected)

	return fsm
}

// ID returns the backend session id.
func (c *Chat) ID() string { return c.id }

// RepositoryURL returns the display-only repository URL.
func (c *Chat) RepositoryURL() string { return c.repositoryURL }

// Validity returns the current validity state.
func (c *Chat) Validity() Validity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validityLocked()
}

func (c *Chat) validityLocked() Validity {
	return c.validity.MustState().(Validity)
}

// Messages returns a copy of the conversation in insertion order.
func (c *Chat) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// DrainNotices returns the notices raised since the last call.
func (c *Chat) DrainNotices() []Notice {
	return c.notices.Drain()
}

// MarkAnalyzed records that the backend just analyzed the repository for this session,
// which makes a status check unnecessary.
func (c *Chat) MarkAnalyzed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fireLocked(triggerAnalysisSucceeded)
}

// Validate asks the backend whether the session still exists. Any failure, including a
// network error, makes the chat invalid. An invalid chat is never re-checked.
func (c *Chat) Validate(ctx context.Context) Validity {
	if c.Validity() == ValidityInvalid {
		return ValidityInvalid
	}

	err := c.backend.SessionStatus(ctx, c.id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.fireLocked(triggerStatusConfirmed)
		return c.validityLocked()
	}

	logger.L.Warn("session validation failed", "session_id", c.id, "error", err)
	notice := Notice{Level: LevelError, Title: "Invalid Session", Description: "This session has expired or doesn't exist"}
	var statusErr *backend.StatusError
	if !errors.As(err, &statusErr) {
		notice = Notice{Level: LevelError, Title: "Connection Error", Description: "Unable to validate session"}
	}
	c.fireLocked(triggerStatusRejected, notice)
	return c.validityLocked()
}

func (c *Chat) fireLocked(trigger validityTrigger, args ...any) {
	if err := c.validity.Fire(trigger, args...); err != nil {
		logger.L.Warn("FSM fire error", "session_id", c.id, "trigger", trigger, "error", err)
	}
}

// Ask appends text as a user message, sends it, and appends the assistant's reply.
// It returns false without touching the conversation when text is blank or the chat is
// invalid. Backend failures are turned into an apology message and a notice; Ask never
// fails.
func (c *Chat) Ask(ctx context.Context, text string) (Message, bool) {
	question := strings.TrimSpace(text)
	if question == "" {
		return Message{}, false
	}

	c.mu.Lock()
	if c.validityLocked() == ValidityInvalid {
		c.mu.Unlock()
		return Message{}, false
	}
	userMsg := c.appendLocked(RoleUser, question, "")
	c.mu.Unlock()
	c.record(ctx, userMsg)

	content := apologyAnswer
	resp, err := c.backend.Ask(ctx, c.id, question)
	if err != nil {
		logger.L.Error("ask failed", "session_id", c.id, "error", err)
		c.notices.Notify(Notice{Level: LevelError, Title: "Error", Description: "Failed to get response. Please try again."})
	} else {
		content = answerText(resp)
	}

	c.mu.Lock()
	reply := c.appendLocked(RoleAssistant, content, userMsg.ID)
	c.mu.Unlock()
	c.record(ctx, reply)

	return reply, true
}

func answerText(resp backend.AskResponse) string {
	switch {
	case resp.Answer != "":
		return resp.Answer
	case resp.Message != "":
		return resp.Message
	default:
		return fallbackAnswer
	}
}

func (c *Chat) appendLocked(role Role, content, replyTo string) Message {
	msg := Message{
		ID:        newMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		ReplyTo:   replyTo,
	}
	c.messages = append(c.messages, msg)
	return msg
}

func (c *Chat) record(ctx context.Context, msg Message) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(context.WithoutCancel(ctx), c.id, msg); err != nil {
		logger.L.Warn("failed to archive message", "session_id", c.id, "message_id", msg.ID, "error", err)
	}
}

// End tells the backend, best effort, that the session can be discarded. It returns
// immediately; the outcome is only logged. The returned channel is closed once the
// attempt is over, for callers that are about to exit.
func (c *Chat) End() <-chan struct{} {
	logger.L.Debug("ending session", "session_id", c.id)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), c.cleanupTimeout)
		defer cancel()
		if err := c.backend.DeleteSession(ctx, c.id); err != nil {
			logger.L.Debug("session cleanup failed", "session_id", c.id, "error", err)
		}
	}()
	return done
}
