package mcpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ggoodman/notion-mcp-go/internal/logctx"
	"github.com/ggoodman/notion-mcp-go/mcp"
)

// Observer receives one callback per completed dispatch. outcome is "ok" or
// the ErrorKind of the failure.
type Observer interface {
	ObserveToolCall(tool, outcome string, d time.Duration)
}

// Dispatcher resolves, validates and invokes tools, and renders their
// results into CallToolResult envelopes. It is safe for concurrent use.
type Dispatcher struct {
	registry  *Registry
	maxLength int
	log       *slog.Logger
	observer  Observer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxResponseLength sets the response bound passed to Format.
func WithMaxResponseLength(n int) DispatcherOption {
	return func(d *Dispatcher) { d.maxLength = n }
}

// WithDispatchLogger sets the logger.
func WithDispatchLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// WithObserver registers an Observer, typically a metrics sink.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// NewDispatcher builds a Dispatcher over reg.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{registry: reg, maxLength: DefaultMaxResponseChars, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher resolves tools from.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch runs one tool call end to end. It never returns a Go error:
// failures are reported as IsError results whose text starts with the
// failure kind and whose _meta carries errorKind (and errorField when a
// specific argument is at fault).
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) *mcp.CallToolResult {
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: name})
	start := time.Now()

	value, err := d.run(ctx, name, args)
	dur := time.Since(start)

	if err != nil {
		e := classify(err)
		d.log.WarnContext(ctx, "dispatch.tool.fail",
			slog.String("kind", string(e.Kind)),
			slog.String("field", e.Field),
			slog.String("err", e.Message),
			slog.Int64("dur_ms", dur.Milliseconds()))
		d.observe(name, string(e.Kind), dur)
		return errorResult(e)
	}

	d.log.InfoContext(ctx, "dispatch.tool.ok", slog.Int64("dur_ms", dur.Milliseconds()))
	d.observe(name, "ok", dur)
	return TextResult(Format(value, d.maxLength))
}

func (d *Dispatcher) run(ctx context.Context, name string, args json.RawMessage) (value any, err error) {
	tool, err := d.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := tool.validate(args); err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			d.log.ErrorContext(ctx, "dispatch.tool.panic", slog.Any("panic", p))
			value, err = nil, UpstreamError(fmt.Errorf("tool handler panicked: %v", p))
		}
	}()
	return tool.invoke(ctx, args)
}

func (d *Dispatcher) observe(name, outcome string, dur time.Duration) {
	if d.observer != nil {
		d.observer.ObserveToolCall(name, outcome, dur)
	}
}

// validate checks raw arguments against the tool's schema before any
// decoding into the typed argument struct.
func (t *Tool) validate(raw json.RawMessage) error {
	fields := map[string]json.RawMessage{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return InvalidArgumentsError("", "arguments must be a JSON object")
		}
	}

	for _, name := range t.Descriptor.InputSchema.Required {
		if v, ok := fields[name]; !ok || isNull(v) {
			return InvalidArgumentsError(name, "required field is missing")
		}
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := fields[name]
		validator, known := t.schema.validators[name]
		if !known {
			return InvalidArgumentsError(name, "unknown field")
		}
		if isNull(v) {
			continue
		}
		var instance any
		if err := json.Unmarshal(v, &instance); err != nil {
			return InvalidArgumentsError(name, "%v", err)
		}
		if err := validator.Validate(instance); err != nil {
			return InvalidArgumentsError(name, "%v", err)
		}
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func errorResult(e *Error) *mcp.CallToolResult {
	res := Errorf("%s", e.Error())
	res.Meta = map[string]any{"errorKind": string(e.Kind)}
	if e.Field != "" {
		res.Meta["errorField"] = e.Field
	}
	return res
}
