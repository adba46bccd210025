package sessions

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by Lookup for an unknown or closed session.
var ErrSessionNotFound = errors.New("sessions: session not found")

const defaultQueueSize = 64

// Observer is notified when sessions open and close.
type Observer interface {
	SessionOpened()
	SessionClosed()
}

// Registry is the set of currently open sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	// issued remembers every identifier handed out so none is reused.
	issued map[string]struct{}

	newID     func() string
	queueSize int
	observer  Observer
}

// Option configures a Registry.
type Option func(*Registry)

// WithIDGenerator overrides the identifier source. Colliding identifiers
// are retried.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// WithQueueSize sets the per-session outbound buffer.
func WithQueueSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// NewRegistry constructs an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:  make(map[string]*Session),
		issued:    make(map[string]struct{}),
		newID:     uuid.NewString,
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open registers a new session whose context derives from ctx.
func (r *Registry) Open(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	id := r.newID()
	for attempts := 0; ; attempts++ {
		if _, taken := r.issued[id]; !taken {
			break
		}
		if attempts >= 8 {
			r.mu.Unlock()
			return nil, errors.New("sessions: could not allocate a unique session id")
		}
		id = r.newID()
	}
	s := newSession(ctx, id, r.queueSize)
	r.issued[id] = struct{}{}
	r.sessions[id] = s
	s.markOpen()
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.SessionOpened()
	}
	return s, nil
}

// Lookup returns the open session with the given id.
func (r *Registry) Lookup(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close deregisters and closes the session. It reports false if no open
// session had that id.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	if s.close() && r.observer != nil {
		r.observer.SessionClosed()
	}
	return true
}

// CloseAll closes every open session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	open := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		open = append(open, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, s := range open {
		if s.close() && r.observer != nil {
			r.observer.SessionClosed()
		}
	}
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
