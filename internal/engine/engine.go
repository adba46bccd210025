// Package engine implements the MCP method surface on top of a tool
// dispatcher. Transports feed it raw JSON-RPC messages.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ggoodman/notion-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/notion-mcp-go/internal/logctx"
	"github.com/ggoodman/notion-mcp-go/mcp"
	"github.com/ggoodman/notion-mcp-go/mcpservice"
)

// Peer is the connection-scoped state the engine needs from a transport.
type Peer interface {
	SessionID() string
	SetClient(name, protocolVersion string)
}

// Engine implements the MCP request surface shared by the stdio and SSE
// transports: initialization, ping, tool listing and tool calls. It holds
// no per-connection state beyond in-flight tool call cancellation.
type Engine struct {
	dispatcher   *mcpservice.Dispatcher
	info         mcp.ImplementationInfo
	instructions string
	log          *slog.Logger

	// tool call tracking
	toolCtxMu      sync.Mutex
	toolCtxCancels map[string]context.CancelCauseFunc // peer/reqID -> cancel func
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger for the Engine.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithServerInfo sets the implementation info returned from initialize.
func WithServerInfo(info mcp.ImplementationInfo) EngineOption {
	return func(e *Engine) { e.info = info }
}

// WithInstructions sets the instructions returned from initialize.
func WithInstructions(s string) EngineOption {
	return func(e *Engine) { e.instructions = s }
}

// NewEngine builds an Engine dispatching tool calls through d.
func NewEngine(d *mcpservice.Dispatcher, opts ...EngineOption) *Engine {
	e := &Engine{
		dispatcher:     d,
		info:           mcp.ImplementationInfo{Name: "notion-mcp", Version: "1.0.0"},
		log:            slog.Default(),
		toolCtxCancels: make(map[string]context.CancelCauseFunc),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// ServerInfo returns the advertised implementation info.
func (e *Engine) ServerInfo() mcp.ImplementationInfo { return e.info }

// HandleMessage processes one raw wire message and returns the response to
// send back, or nil when the message warrants none (notifications and
// client responses). Protocol failures become JSON-RPC error responses.
func (e *Engine) HandleMessage(ctx context.Context, peer Peer, raw []byte) *jsonrpc.Response {
	msg, err := jsonrpc.Decode(raw)
	if err != nil {
		if errors.Is(err, jsonrpc.ErrParse) {
			e.log.InfoContext(ctx, "engine.handle_message.parse_error")
			return jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "", nil)
		}
		e.log.InfoContext(ctx, "engine.handle_message.invalid", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeInvalidRequest, "", nil)
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{
		Method: msg.Method,
		ID:     msg.ID.String(),
		Type:   string(msg.Type()),
	})

	switch msg.Type() {
	case jsonrpc.TypeRequest:
		res, err := e.HandleRequest(ctx, peer, msg.AsRequest())
		if err != nil {
			e.log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInternalError, "", nil)
		}
		return res
	case jsonrpc.TypeNotification:
		e.HandleNotification(ctx, peer, msg.AsRequest())
		return nil
	default:
		// The server never issues requests, so client responses are unexpected.
		e.log.DebugContext(ctx, "engine.handle_message.unexpected_response")
		return nil
	}
}

// HandleRequest routes a request to its method handler.
func (e *Engine) HandleRequest(ctx context.Context, peer Peer, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	switch req.Method {
	case string(mcp.InitializeMethod):
		return e.handleInitialize(ctx, peer, req)
	case string(mcp.PingMethod):
		return jsonrpc.NewResultResponse(req.ID, mcp.EmptyResult{})
	case string(mcp.ToolsListMethod):
		return e.handleToolsList(ctx, req)
	case string(mcp.ToolsCallMethod):
		return e.handleToolCall(ctx, peer, req)
	}

	e.log.InfoContext(ctx, "engine.handle_request.unsupported")
	return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "", nil), nil
}

func (e *Engine) handleInitialize(ctx context.Context, peer Peer, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()

	var params mcp.InitializeRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		e.log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "", nil), nil
	}

	version := mcp.NegotiateProtocolVersion(params.ProtocolVersion)
	peer.SetClient(params.ClientInfo.Name, version)

	result := &mcp.InitializeResult{
		ProtocolVersion: version,
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{ListChanged: false},
		},
		ServerInfo:   e.info,
		Instructions: e.instructions,
	}

	e.log.InfoContext(ctx, "engine.handle_request.ok",
		slog.String("client", params.ClientInfo.Name),
		slog.String("protocol_version", version),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return jsonrpc.NewResultResponse(req.ID, result)
}

func (e *Engine) handleToolsList(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()

	var params mcp.ListToolsRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			e.log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "", nil), nil
		}
	}

	tools, next, err := e.dispatcher.Registry().ListPage(params.Cursor)
	if err != nil {
		e.log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid cursor", nil), nil
	}

	result := &mcp.ListToolsResult{Tools: tools}
	result.NextCursor = next

	e.log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Int("tool_count", len(tools)))
	return jsonrpc.NewResultResponse(req.ID, result)
}

func (e *Engine) handleToolCall(ctx context.Context, peer Peer, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()

	var params mcp.CallToolRequestReceived
	if err := json.Unmarshal(req.Params, &params); err != nil {
		e.log.InfoContext(ctx, "engine.handle_request.invalid", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "", nil), nil
	}
	if params.Name == "" {
		e.log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", "missing tool name"), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "", nil), nil
	}

	// Track the call so notifications/cancelled can reach its context.
	key := cancelKey(peer, req.ID.String())
	toolCtx, toolCancel := context.WithCancelCause(ctx)
	defer toolCancel(context.Canceled)

	e.toolCtxMu.Lock()
	if _, exists := e.toolCtxCancels[key]; exists {
		e.toolCtxMu.Unlock()
		e.log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", "duplicate request ID"))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, "duplicate request ID", nil), nil
	}
	e.toolCtxCancels[key] = toolCancel
	e.toolCtxMu.Unlock()

	defer func() {
		e.toolCtxMu.Lock()
		delete(e.toolCtxCancels, key)
		e.toolCtxMu.Unlock()
	}()

	res := e.dispatcher.Dispatch(toolCtx, params.Name, params.Arguments)

	e.log.InfoContext(ctx, "engine.handle_request.ok",
		slog.String("tool", params.Name),
		slog.Bool("is_error", res.IsError),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return jsonrpc.NewResultResponse(req.ID, res)
}

// HandleNotification processes client notifications. Unknown notifications
// are ignored.
func (e *Engine) HandleNotification(ctx context.Context, peer Peer, note *jsonrpc.Request) {
	switch note.Method {
	case string(mcp.InitializedNotificationMethod):
		e.log.InfoContext(ctx, "engine.session.initialized")
	case string(mcp.CancelledNotificationMethod):
		var params mcp.CancelledNotification
		if err := json.Unmarshal(note.Params, &params); err != nil {
			e.log.InfoContext(ctx, "engine.handle_notification.invalid", slog.String("err", err.Error()))
			return
		}
		var id jsonrpc.RequestID
		if err := json.Unmarshal(params.RequestID, &id); err != nil {
			e.log.InfoContext(ctx, "engine.handle_notification.invalid", slog.String("err", err.Error()))
			return
		}
		if e.cancelInFlightRequest(cancelKey(peer, id.String()), params.Reason) {
			e.log.InfoContext(ctx, "engine.handle_notification.cancelled", slog.String("request_id", id.String()))
		}
	default:
		e.log.DebugContext(ctx, "engine.handle_notification.ignored")
	}
}

func (e *Engine) cancelInFlightRequest(key, reason string) bool {
	e.toolCtxMu.Lock()
	cancel, exists := e.toolCtxCancels[key]
	e.toolCtxMu.Unlock()

	if !exists || cancel == nil {
		return false
	}
	if reason == "" {
		reason = "cancelled"
	}
	cancel(errors.New(reason))
	return true
}

func cancelKey(peer Peer, reqID string) string {
	return peer.SessionID() + "/" + reqID
}
