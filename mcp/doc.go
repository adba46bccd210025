// Package mcp contains the Model Context Protocol wire types used by the
// Notion server: initialization, tool listing and tool invocation. It holds
// no transport logic; stdio and SSE transports share these types and hand
// them to the engine for JSON-RPC serialization.
//
// Example (tool result construction):
//
//	res := &mcp.CallToolResult{
//	    Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: "hello"}},
//	}
//
// LatestProtocolVersion reflects the newest protocol date the server
// targets. NegotiateProtocolVersion picks the version echoed back to a
// client during initialize.
package mcp
