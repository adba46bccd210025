// Package sessions tracks the push channels opened by SSE clients.
//
// A Session binds a server-generated identifier to one outbound message
// queue. The Registry owns every open session: transports Open a session
// when a client connects, Lookup it for each inbound request, and Close it
// when the client goes away. Identifiers are random UUIDs and are never
// handed out twice within a process.
//
// Closing a session removes it from the registry before its queue is torn
// down, so a concurrent Lookup observes either the open session or
// ErrSessionNotFound. A dispatch that completes after the close gets
// ErrSessionClosed from WriteMessage and should drop its result.
//
// All state is in memory and scoped to the process.
package sessions
