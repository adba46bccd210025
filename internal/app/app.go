// Package app assembles the server from configuration and runs it on the
// selected transport.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ggoodman/notion-mcp-go/internal/config"
	"github.com/ggoodman/notion-mcp-go/internal/engine"
	"github.com/ggoodman/notion-mcp-go/internal/logctx"
	"github.com/ggoodman/notion-mcp-go/internal/metrics"
	"github.com/ggoodman/notion-mcp-go/internal/notiontools"
	"github.com/ggoodman/notion-mcp-go/mcp"
	"github.com/ggoodman/notion-mcp-go/mcpservice"
	"github.com/ggoodman/notion-mcp-go/notion"
	"github.com/ggoodman/notion-mcp-go/sessions"
	"github.com/ggoodman/notion-mcp-go/ssehttp"
	"github.com/ggoodman/notion-mcp-go/stdio"
	"github.com/hashicorp/go-multierror"
	"github.com/mattn/go-isatty"
)

// ServerName and ServerVersion identify the server to clients.
const (
	ServerName    = "notion-mcp"
	ServerVersion = "1.0.0"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 15 * time.Second
)

const instructions = "Tools for reading and writing a Notion workspace. Structured fields such as properties, filters and children take JSON text."

// NewLogger builds the process logger. Output always goes to w, which must
// not be the protocol stream. An empty format picks text for terminals and
// JSON otherwise.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		if isTerminal(w) {
			h = slog.NewTextHandler(w, opts)
		} else {
			h = slog.NewJSONHandler(w, opts)
		}
	}
	return slog.New(logctx.New(h))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// App is a fully wired server.
type App struct {
	cfg        *config.Config
	log        *slog.Logger
	metrics    *metrics.Metrics
	registry   *mcpservice.Registry
	dispatcher *mcpservice.Dispatcher
	engine     *engine.Engine
}

// New wires the tool catalog, dispatcher and engine for cfg. The Notion
// client is built on first use.
func New(cfg *config.Config, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	m := metrics.New()

	clients := notion.NewLazy(func() (*notion.Client, error) {
		return notion.New(cfg.Notion,
			notion.WithLogger(log),
			notion.WithHTTPClient(&http.Client{
				Timeout:   cfg.Notion.Timeout,
				Transport: m.InstrumentTransport(http.DefaultTransport),
			}),
		)
	})

	reg := mcpservice.NewRegistry()
	notiontools.Register(reg, clients)
	reg.Seal()

	d := mcpservice.NewDispatcher(reg,
		mcpservice.WithMaxResponseLength(cfg.MaxResponseChars),
		mcpservice.WithDispatchLogger(log),
		mcpservice.WithObserver(m),
	)
	eng := engine.NewEngine(d,
		engine.WithLogger(log),
		engine.WithServerInfo(mcp.ImplementationInfo{Name: ServerName, Version: ServerVersion}),
		engine.WithInstructions(instructions),
	)

	return &App{cfg: cfg, log: log, metrics: m, registry: reg, dispatcher: d, engine: eng}
}

// Catalog returns the tool descriptors without needing a credential.
func Catalog() []mcp.Tool {
	reg := mcpservice.NewRegistry()
	notiontools.Register(reg, notion.NewLazy(func() (*notion.Client, error) {
		return nil, notion.ErrMissingAPIKey
	}))
	reg.Seal()
	return reg.List()
}

// Engine returns the protocol engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// Run serves on the configured transport until ctx ends or the transport
// stops on its own.
func (a *App) Run(ctx context.Context) error {
	a.log.InfoContext(ctx, "app.run.start",
		slog.String("transport", string(a.cfg.Transport)),
		slog.Int("tools", a.registry.Len()))

	switch a.cfg.Transport {
	case config.TransportStdio:
		return a.runStdio(ctx)
	case config.TransportSSE:
		return a.runSSE(ctx)
	}
	return fmt.Errorf("app: unsupported transport %q", a.cfg.Transport)
}

func (a *App) runStdio(ctx context.Context) error {
	h := stdio.NewHandler(a.engine, stdio.WithLogger(a.log))
	err := h.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) runSSE(ctx context.Context) error {
	h := ssehttp.New(a.engine,
		sessions.NewRegistry(sessions.WithObserver(a.metrics)),
		ssehttp.WithLogger(a.log),
		ssehttp.WithKeepAlive(a.cfg.SSEKeepAlive),
		ssehttp.WithMetricsHandler(a.metrics.Handler()),
	)

	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.serveSSE(ctx, ln, h)
}

// serveSSE serves h on ln until ctx ends, then closes every session and
// shuts the server down gracefully.
func (a *App) serveSSE(ctx context.Context, ln net.Listener, h *ssehttp.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.log.InfoContext(ctx, "app.sse.listening", slog.String("addr", ln.Addr().String()))

	var result *multierror.Error
	select {
	case err := <-errCh:
		h.Close()
		if !errors.Is(err, http.ErrServerClosed) {
			result = multierror.Append(result, fmt.Errorf("app: serve: %w", err))
		}
	case <-ctx.Done():
		start := time.Now()
		// Streams never finish on their own, so end them before draining.
		h.Close()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			result = multierror.Append(result, fmt.Errorf("app: shutdown: %w", err))
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			result = multierror.Append(result, fmt.Errorf("app: serve: %w", err))
		}
		a.log.InfoContext(ctx, "app.sse.shutdown", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	}
	return result.ErrorOrNil()
}
