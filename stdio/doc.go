// Package stdio implements a single-connection MCP transport over
// stdin/stdout. It is how desktop MCP clients launch the server as a
// subprocess.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Auth             : none (the OS user names the peer in logs)
//	Sessions         : one implicit session for the life of the process
//	Framing          : newline-delimited JSON-RPC
//
// Messages are handled strictly in arrival order. Logs must never be written
// to stdout, which carries the protocol stream.
//
// Example:
//
//	eng := engine.NewEngine(dispatcher)
//	h := stdio.NewHandler(eng, stdio.WithLogger(logger))
//	if err := h.Serve(ctx); err != nil { log.Fatal(err) }
package stdio
