package ssehttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/notion-mcp-go/internal/engine"
	"github.com/ggoodman/notion-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/notion-mcp-go/internal/logctx"
	"github.com/ggoodman/notion-mcp-go/mcpservice"
	"github.com/ggoodman/notion-mcp-go/sessions"
	"github.com/gorilla/mux"
)

var (
	_ http.Handler = (*Handler)(nil)
)

// ErrHandlerClosed is reported to clients posting after Close.
var ErrHandlerClosed = errors.New("ssehttp: handler closed")

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaType  = contenttype.NewMediaType("text/event-stream")
	eventStreamMediaTypes = []contenttype.MediaType{eventStreamMediaType}
)

const (
	// DefaultKeepAlive is the interval between keepalive comments.
	DefaultKeepAlive = 25 * time.Second
	// DefaultMaxBodyBytes bounds a single POSTed message.
	DefaultMaxBodyBytes int64 = 4 << 20

	sessionIDParam = "sessionId"
	messagesPath   = "/messages"
)

// writeJSONError emits a minimal JSON body for HTTP-layer rejections before a
// JSON-RPC exchange is possible. Shape:
// {"error":{"code":<httpStatus>,"kind":"<kind>","message":"<reason>"}}
// The kind member is omitted when empty.
func writeJSONError(w http.ResponseWriter, status int, kind mcpservice.ErrorKind, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	body := map[string]any{"code": status, "message": msg}
	if kind != "" {
		body["kind"] = string(kind)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"error": body})
}

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets the handler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithKeepAlive sets the interval between keepalive comments on open
// streams. A non-positive interval disables them.
func WithKeepAlive(d time.Duration) Option {
	return func(h *Handler) { h.keepAlive = d }
}

// WithMaxBodyBytes bounds the size of a POSTed message.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// WithMetricsHandler serves h at GET /metrics.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// Handler implements the HTTP+SSE transport on top of an engine and a
// session registry.
type Handler struct {
	router    *mux.Router
	log       *slog.Logger
	eng       *engine.Engine
	sessions  *sessions.Registry
	keepAlive time.Duration
	maxBody   int64
	metrics   http.Handler

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
	shutdown chan struct{}
}

// lockedWriteFlusher wraps an io.Writer + http.Flusher with a mutex and an optional context.
// It serializes concurrent writes/flushes and avoids writing after ctx is canceled.
type lockedWriteFlusher struct {
	io.Writer
	http.Flusher
	mu  sync.Mutex
	ctx context.Context
}

func (l *lockedWriteFlusher) Write(p []byte) (int, error) {
	if l.ctx != nil && l.ctx.Err() != nil {
		return 0, l.ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// Re-check after acquiring the lock to minimize races with cancellation
	if l.ctx != nil && l.ctx.Err() != nil {
		return 0, l.ctx.Err()
	}
	return l.Writer.Write(p)
}

func (l *lockedWriteFlusher) Flush() {
	if l.ctx != nil && l.ctx.Err() != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx != nil && l.ctx.Err() != nil {
		return
	}
	l.Flusher.Flush()
}

// New constructs a Handler serving eng over sessions from reg.
func New(eng *engine.Engine, reg *sessions.Registry, opts ...Option) *Handler {
	h := &Handler{
		log:       slog.Default(),
		eng:       eng,
		sessions:  reg,
		keepAlive: DefaultKeepAlive,
		maxBody:   DefaultMaxBodyBytes,
		shutdown:  make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.sessions == nil {
		h.sessions = sessions.NewRegistry()
	}
	h.log = logctx.Ensure(h.log)

	r := mux.NewRouter()
	r.HandleFunc("/sse", h.handleGetSSE).Methods(http.MethodGet)
	r.HandleFunc(messagesPath, h.handlePostMessage).Methods(http.MethodPost)
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics).Methods(http.MethodGet)
	}
	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})))
}

// Sessions returns the registry backing the handler.
func (h *Handler) Sessions() *sessions.Registry { return h.sessions }

// Close ends every open stream, closes all sessions and waits for in-flight
// message handling to finish. It is safe to call more than once.
func (h *Handler) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.shutdown)
	h.mu.Unlock()

	h.sessions.CloseAll()
	h.inflight.Wait()
	h.log.Info("sse.handler.closed")
}

// handleGetSSE opens a session and relays its queued messages as SSE events
// until the client goes away, the session closes or the handler shuts down.
func (h *Handler) handleGetSSE(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		writeJSONError(w, http.StatusNotAcceptable, "", "client must accept text/event-stream")
		h.log.WarnContext(ctx, "http.get.not_acceptable")
		return
	}

	f, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		h.log.ErrorContext(ctx, "sse.flusher.missing")
		return
	}

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		writeJSONError(w, http.StatusServiceUnavailable, "", ErrHandlerClosed.Error())
		return
	}

	sess, err := h.sessions.Open(ctx)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		h.log.ErrorContext(ctx, "session.open.fail", slog.String("err", err.Error()))
		return
	}
	defer h.sessions.Close(sess.SessionID())

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.SessionID(), Transport: "sse"})
	wf := &lockedWriteFlusher{Writer: w, Flusher: f, ctx: ctx}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	endpoint := fmt.Sprintf("%s?%s=%s", messagesPath, sessionIDParam, sess.SessionID())
	if err := writeSSEEvent(wf, "endpoint", []byte(endpoint)); err != nil {
		h.log.ErrorContext(ctx, "sse.write.fail", slog.String("err", err.Error()))
		return
	}
	h.log.InfoContext(ctx, "sse.stream.start")

	var tick <-chan time.Time
	if h.keepAlive > 0 {
		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			h.logStreamEnd(ctx, sess, "client", start)
			return
		case <-sess.Done():
			h.logStreamEnd(ctx, sess, "session", start)
			return
		case <-h.shutdown:
			h.logStreamEnd(ctx, sess, "shutdown", start)
			return
		case <-tick:
			if _, err := wf.Write([]byte(": keepalive\n\n")); err != nil {
				h.log.InfoContext(ctx, "sse.keepalive.fail", slog.String("err", err.Error()))
				return
			}
			wf.Flush()
		case msg := <-sess.Messages():
			if err := writeSSEEvent(wf, "message", msg); err != nil {
				h.log.ErrorContext(ctx, "sse.write.fail", slog.String("err", err.Error()))
				return
			}
			h.log.DebugContext(ctx, "sse.message.deliver")
		}
	}
}

func (h *Handler) logStreamEnd(ctx context.Context, sess *sessions.Session, reason string, start time.Time) {
	client, protocol := sess.Client()
	h.log.InfoContext(ctx, "sse.stream.end",
		slog.String("reason", reason),
		slog.String("client", client),
		slog.String("protocol_version", protocol),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()))
}

// handlePostMessage accepts one JSON-RPC message for an open session. The
// message is handled asynchronously on the session's context and any
// response is queued onto the session's stream.
func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessID := r.URL.Query().Get(sessionIDParam)
	sess, err := h.sessions.Lookup(sessID)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, mcpservice.KindSessionNotFound, mcpservice.SessionNotFoundError(sessID).Message)
		h.log.InfoContext(ctx, "session.lookup.miss", slog.String("session_id", sessID))
		return
	}
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sessID, Transport: "sse"})

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "", "content-type must be application/json")
		h.log.WarnContext(ctx, "content_type.unsupported")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusBadRequest, "", fmt.Sprintf("message exceeds %d bytes", h.maxBody))
		} else {
			writeJSONError(w, http.StatusBadRequest, "", "failed to read body")
		}
		h.log.WarnContext(ctx, "http.body.read_fail", slog.String("err", err.Error()))
		return
	}
	if _, err := jsonrpc.Decode(body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "", "invalid JSON-RPC message")
		h.log.WarnContext(ctx, "jsonrpc.message.invalid", slog.String("err", err.Error()))
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		writeJSONError(w, http.StatusServiceUnavailable, "", ErrHandlerClosed.Error())
		return
	}
	h.inflight.Add(1)
	h.mu.Unlock()

	w.WriteHeader(http.StatusAccepted)

	// The request context ends with this POST; the message belongs to the
	// session from here on.
	msgCtx := logctx.WithSessionData(sess.Context(), &logctx.SessionData{SessionID: sessID, Transport: "sse"})
	go func() {
		defer h.inflight.Done()
		h.deliver(msgCtx, sess, body)
	}()
}

func (h *Handler) deliver(ctx context.Context, sess *sessions.Session, body []byte) {
	res := h.eng.HandleMessage(ctx, sess, body)
	if res == nil {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		h.log.ErrorContext(ctx, "jsonrpc.response.marshal_fail", slog.String("err", err.Error()))
		return
	}
	if err := sess.WriteMessage(ctx, payload); err != nil {
		if errors.Is(err, sessions.ErrSessionClosed) || errors.Is(err, context.Canceled) {
			h.log.InfoContext(ctx, "sse.message.discarded", slog.String("err", err.Error()))
			return
		}
		h.log.ErrorContext(ctx, "sse.message.queue_fail", slog.String("err", err.Error()))
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := h.eng.ServerInfo()
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"tools":     info.Name,
		"transport": "sse",
		"version":   info.Version,
	})
}

// writeSSEEvent writes a named Server-Sent Event carrying payload as its data
// field and flushes it. The payload must not contain newlines.
func writeSSEEvent(wf *lockedWriteFlusher, event string, payload []byte) error {
	if _, err := fmt.Fprintf(wf, "event: %s\n", event); err != nil {
		return fmt.Errorf("failed to write SSE event name: %w", err)
	}
	if _, err := wf.Write([]byte("data: ")); err != nil {
		return fmt.Errorf("failed to write SSE data prefix: %w", err)
	}
	if _, err := wf.Write(payload); err != nil {
		return fmt.Errorf("failed to write SSE payload: %w", err)
	}
	if _, err := wf.Write([]byte("\n\n")); err != nil {
		return fmt.Errorf("failed to write SSE frame terminator: %w", err)
	}
	wf.Flush()
	return nil
}
