package session

import (
	"context"
	"sync"
	"time"

	"github.com/comigor/gitmaster-go/internal/logger"
)

// DefaultIdleTimeout is how long a chat may go unused before the registry ends it.
const DefaultIdleTimeout = 30 * time.Minute

type registryEntry struct {
	chat     *Chat
	validate sync.Once
	lastUsed time.Time
}

// Registry keeps the live chats of the web front end, keyed by session id.
type Registry struct {
	backend     Backend
	opts        []ChatOption
	idleTimeout time.Duration
	now         func() time.Time

	mu    sync.Mutex
	chats map[string]*registryEntry
}

// NewRegistry creates an empty Registry. opts are applied to every chat it creates.
func NewRegistry(b Backend, opts ...ChatOption) *Registry {
	return &Registry{
		backend:     b,
		opts:        opts,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
		chats:       make(map[string]*registryEntry),
	}
}

// SetIdleTimeout changes how long an unused chat is kept. Non-positive values are ignored.
func (r *Registry) SetIdleTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	r.idleTimeout = d
	r.mu.Unlock()
}

// Open returns the chat for sessionID, creating it on first use. A new chat is validated
// exactly once; concurrent callers wait for that check. A chat that turns out invalid is
// returned but not kept, since it can never be used again.
func (r *Registry) Open(ctx context.Context, sessionID, repositoryURL string) *Chat {
	r.mu.Lock()
	now := r.now()
	expired := r.sweepLocked(now, sessionID)
	e, ok := r.chats[sessionID]
	if !ok {
		e = &registryEntry{chat: NewChat(sessionID, repositoryURL, r.backend, r.opts...)}
		r.chats[sessionID] = e
	}
	e.lastUsed = now
	r.mu.Unlock()

	for _, chat := range expired {
		logger.L.Info("ending idle chat", "session_id", chat.ID())
		chat.End()
	}

	e.validate.Do(func() {
		e.chat.Validate(context.WithoutCancel(ctx))
	})

	if e.chat.Validity() == ValidityInvalid {
		r.mu.Lock()
		if r.chats[sessionID] == e {
			delete(r.chats, sessionID)
		}
		r.mu.Unlock()
	}
	return e.chat
}

// sweepLocked removes the chats, other than keep, idle for longer than the idle timeout
// and returns them.
func (r *Registry) sweepLocked(now time.Time, keep string) []*Chat {
	var expired []*Chat
	for id, e := range r.chats {
		if id != keep && now.Sub(e.lastUsed) > r.idleTimeout {
			delete(r.chats, id)
			expired = append(expired, e.chat)
		}
	}
	return expired
}

// Get returns an already opened chat.
func (r *Registry) Get(sessionID string) (*Chat, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.chats[sessionID]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.chat, true
}

// Release forgets the chat for sessionID and returns it.
func (r *Registry) Release(sessionID string) (*Chat, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.chats[sessionID]
	if !ok {
		return nil, false
	}
	delete(r.chats, sessionID)
	return e.chat, true
}

// Len returns the number of live chats.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chats)
}

// End releases sessionID and sends the advisory delete. Unknown ids are still deleted on
// the backend, since the page may outlive this process.
func (r *Registry) End(sessionID string) {
	chat, ok := r.Release(sessionID)
	if !ok {
		chat = NewChat(sessionID, "", r.backend, r.opts...)
	}
	chat.End()
}
