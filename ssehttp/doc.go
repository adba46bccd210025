// Package ssehttp implements the legacy HTTP+SSE MCP transport.
//
// A client opens a long-lived event stream with GET /sse. The first event
// names the endpoint, /messages?sessionId=<id>, to which the client POSTs
// JSON-RPC messages. Each POST is acknowledged with 202 Accepted and handled
// asynchronously; its response is delivered as a "message" event on the
// stream. Closing the stream closes the session.
//
// The handler also serves GET /health and, when configured, GET /metrics.
package ssehttp
