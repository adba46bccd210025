package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/notion-mcp-go/internal/engine"
	"github.com/ggoodman/notion-mcp-go/internal/logctx"
)

// ErrAlreadyServed is returned when Serve is called more than once.
var ErrAlreadyServed = errors.New("stdio: handler already served")

// State is the connection state of a Handler.
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Handler is a single-connection stdio transport that reads JSON-RPC messages
// from an io.Reader and writes responses to an io.Writer. By default, it uses
// os.Stdin and os.Stdout.
//
// The handler is transport-only; it delegates all MCP semantics to the
// provided engine.
type Handler struct {
	eng          *engine.Engine
	r            io.Reader
	w            io.Writer
	l            *slog.Logger
	lookupUser   func() (string, error)

	state  atomic.Int32
	served atomic.Bool
}

// NewHandler constructs a stdio Handler with defaults and applies options.
func NewHandler(eng *engine.Engine, opts ...Option) *Handler {
	h := &Handler{
		eng:          eng,
		r:            os.Stdin,
		w:            os.Stdout,
		l:            slog.Default(),
		lookupUser:   osUser,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.r == nil {
		h.r = os.Stdin
	}
	if h.w == nil {
		h.w = os.Stdout
	}
	if h.l == nil {
		h.l = slog.Default()
	}
	return h
}

// State reports the current connection state.
func (h *Handler) State() State { return State(h.state.Load()) }

type readResult struct {
	line []byte
	err  error
}

// Serve runs the stdio event loop until EOF on the reader or the context is
// canceled. It is safe to call at most once per Handler. It returns nil on
// EOF and ctx.Err() on cancellation.
func (h *Handler) Serve(ctx context.Context) error {
	if h.served.Swap(true) {
		return ErrAlreadyServed
	}

	peer := newPeer(h.lookupUser)
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: peer.SessionID(), Transport: "stdio"})

	h.state.Store(int32(StateConnected))
	defer h.state.Store(int32(StateClosed))
	h.l.InfoContext(ctx, "stdio.serve.start")

	out := &writeMux{w: bufio.NewWriter(h.w)}

	// The reader runs ahead by at most one line so that cancellation is
	// observed while blocked on input.
	lines := make(chan readResult)
	go func() {
		br := bufio.NewReader(h.r)
		for {
			line, err := br.ReadBytes('\n')
			if len(line) > 0 {
				select {
				case lines <- readResult{line: line}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				select {
				case lines <- readResult{err: err}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.l.InfoContext(ctx, "stdio.serve.cancelled", peer.clientAttrs()...)
			return ctx.Err()
		case rr := <-lines:
			if rr.err != nil {
				if errors.Is(rr.err, io.EOF) {
					h.l.InfoContext(ctx, "stdio.serve.eof", peer.clientAttrs()...)
					return nil
				}
				h.l.ErrorContext(ctx, "stdio.serve.read_fail", slog.String("err", rr.err.Error()))
				return fmt.Errorf("stdio: read: %w", rr.err)
			}
			if err := h.handleLine(ctx, peer, out, rr.line); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) handleLine(ctx context.Context, peer *stdioPeer, out *writeMux, line []byte) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	start := time.Now()
	res := h.eng.HandleMessage(ctx, peer, line)
	if res == nil {
		return nil
	}
	if err := out.writeJSONRPC(res); err != nil {
		h.l.ErrorContext(ctx, "stdio.write.fail", slog.String("err", err.Error()))
		return fmt.Errorf("stdio: write: %w", err)
	}
	h.l.DebugContext(ctx, "stdio.write.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return nil
}

// writeMux serializes JSON-RPC lines onto the output stream.
type writeMux struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (m *writeMux) writeJSONRPC(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.w.Write(b); err != nil {
		return err
	}
	if err := m.w.WriteByte('\n'); err != nil {
		return err
	}
	return m.w.Flush()
}
