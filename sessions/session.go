package sessions

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionClosed is returned by WriteMessage once the session has closed.
var ErrSessionClosed = errors.New("sessions: session closed")

// SessionState is the lifecycle state of a push channel.
type SessionState string

const (
	StateOpening SessionState = "opening"
	StateOpen    SessionState = "open"
	StateClosed  SessionState = "closed"
)

// Session is one open push channel.
type Session struct {
	id        string
	createdAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	outbound chan []byte
	done     chan struct{}

	mu    sync.RWMutex
	state SessionState

	clientMu   sync.RWMutex
	clientName string
	protocol   string
}

func newSession(parent context.Context, id string, queueSize int) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:        id,
		createdAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		outbound:  make(chan []byte, queueSize),
		done:      make(chan struct{}),
		state:     StateOpening,
	}
}

// SessionID returns the session identifier.
func (s *Session) SessionID() string { return s.id }

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Context is canceled when the session closes. Work started on behalf of
// the session should derive from it.
func (s *Session) Context() context.Context { return s.ctx }

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.done }

// Messages yields queued outbound messages in the order they were written.
func (s *Session) Messages() <-chan []byte { return s.outbound }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetClient records the client identity negotiated during initialize.
func (s *Session) SetClient(name, protocolVersion string) {
	s.clientMu.Lock()
	s.clientName = name
	s.protocol = protocolVersion
	s.clientMu.Unlock()
}

// Client returns the values recorded by SetClient.
func (s *Session) Client() (name, protocolVersion string) {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	return s.clientName, s.protocol
}

// WriteMessage queues msg for delivery on the push channel. It blocks while
// the queue is full and fails with ErrSessionClosed once the session has
// closed, or with ctx.Err() if ctx ends first.
func (s *Session) WriteMessage(ctx context.Context, msg []byte) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.outbound <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) markOpen() {
	s.mu.Lock()
	if s.state == StateOpening {
		s.state = StateOpen
	}
	s.mu.Unlock()
}

// close transitions to StateClosed. It reports false if the session was
// already closed.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	s.cancel()
	close(s.done)
	return true
}
