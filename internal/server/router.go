package server

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Tyrowin/termchat/internal/logger"
	"github.com/Tyrowin/termchat/internal/protocol"
)

// Router fans envelopes out to the mailboxes of authenticated sessions.
// The registry is guarded by a mutex held only while inserting, removing,
// or iterating; mailbox sends never block, so no network I/O happens under it.
type Router struct {
	mu     sync.RWMutex
	routes map[uuid.UUID]route
}

type route struct {
	username string
	mailbox  chan<- protocol.Envelope
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[uuid.UUID]route)}
}

// Register inserts the mailbox for id. It fails with ErrAlreadyRegistered if
// id is present and with ErrUsernameTaken if another session holds username.
func (r *Router) Register(id uuid.UUID, username string, mailbox chan<- protocol.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.routes[id]; exists {
		logger.Warn("Session %s is already registered; ignoring", id)
		return ErrAlreadyRegistered
	}
	for _, rt := range r.routes {
		if rt.username == username {
			return ErrUsernameTaken
		}
	}

	r.routes[id] = route{username: username, mailbox: mailbox}
	logger.Info("Session %s (%s) registered. Total sessions: %d", id, username, len(r.routes))
	return nil
}

// Deregister removes id. Removing an absent id is a no-op.
func (r *Router) Deregister(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rt, ok := r.routes[id]; ok {
		delete(r.routes, id)
		logger.Info("Session %s (%s) deregistered. Total sessions: %d", id, rt.username, len(r.routes))
	}
}

// Broadcast delivers e to every registered mailbox except sender's and returns
// the number of mailboxes that accepted it. Pass uuid.Nil to reach everyone.
// Full mailboxes are skipped.
func (r *Router) Broadcast(sender uuid.UUID, e protocol.Envelope) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for id, rt := range r.routes {
		if id == sender {
			continue
		}
		if deliver(rt.mailbox, e) {
			delivered++
			continue
		}
		logger.Warn("Mailbox of %s (%s) is full; dropping %s", id, rt.username, e.Kind())
	}
	return delivered
}

// SendTargeted delivers e to the mailbox of target only. It returns
// ErrRecipientNotFound when target is not registered. A full mailbox drops the
// envelope without reporting an error.
func (r *Router) SendTargeted(target uuid.UUID, e protocol.Envelope) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.routes[target]
	if !ok {
		return ErrRecipientNotFound
	}
	if !deliver(rt.mailbox, e) {
		logger.Warn("Mailbox of %s (%s) is full; dropping targeted %s", target, rt.username, e.Kind())
	}
	return nil
}

func deliver(mailbox chan<- protocol.Envelope, e protocol.Envelope) bool {
	select {
	case mailbox <- e:
		return true
	default:
		return false
	}
}

// Online reports whether a registered session holds username.
func (r *Router) Online(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.routes {
		if rt.username == username {
			return true
		}
	}
	return false
}

// Len returns the number of registered sessions.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.routes)
}

// Usernames returns the registered usernames in sorted order.
func (r *Router) Usernames() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.routes))
	for _, rt := range r.routes {
		names = append(names, rt.username)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}
