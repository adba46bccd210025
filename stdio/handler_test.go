package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/notion-mcp-go/internal/engine"
	"github.com/ggoodman/notion-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/notion-mcp-go/mcp"
	"github.com/ggoodman/notion-mcp-go/mcpservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHarness encapsulates pipes and collected output for stdio handler tests.
type testHarness struct {
	t        *testing.T
	h        *Handler
	cancel   context.CancelFunc
	stdinW   *io.PipeWriter
	outMu    sync.Mutex
	lines    []string
	serveErr chan error
}

type greetArgs struct {
	Name string `json:"name" jsonschema_description:"Who to greet"`
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	reg := mcpservice.NewRegistry()
	reg.MustRegister(mcpservice.NewTool("greet", func(ctx context.Context, a greetArgs) (any, error) {
		return "hello " + a.Name, nil
	}, mcpservice.WithToolDescription("Greet someone")))
	reg.Seal()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return engine.NewEngine(mcpservice.NewDispatcher(reg, mcpservice.WithDispatchLogger(quiet)), engine.WithLogger(quiet))
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	h := NewHandler(newTestEngine(t), WithReader(inR), WithWriter(outW), WithUserID("tester"), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ctx, cancel := context.WithCancel(context.Background())
	th := &testHarness{t: t, h: h, cancel: cancel, stdinW: inW, serveErr: make(chan error, 1)}

	go func() {
		th.serveErr <- h.Serve(ctx)
	}()

	go func() {
		sc := bufio.NewScanner(outR)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			th.outMu.Lock()
			th.lines = append(th.lines, line)
			th.outMu.Unlock()
		}
	}()

	t.Cleanup(func() {
		cancel()
		_ = inW.Close()
		_ = outW.Close()
	})
	return th
}

func (th *testHarness) send(raw string) {
	th.t.Helper()
	_, err := th.stdinW.Write([]byte(raw + "\n"))
	require.NoError(th.t, err)
}

func (th *testHarness) nextLine(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		th.outMu.Lock()
		if len(th.lines) > 0 {
			s := th.lines[0]
			th.lines = th.lines[1:]
			th.outMu.Unlock()
			return s, nil
		}
		th.outMu.Unlock()
		time.Sleep(2 * time.Millisecond)
	}
	return "", fmt.Errorf("timeout waiting for output line")
}

func (th *testHarness) expectResponse() *jsonrpc.Response {
	th.t.Helper()
	line, err := th.nextLine(2 * time.Second)
	require.NoError(th.t, err)
	var res jsonrpc.Response
	require.NoError(th.t, json.Unmarshal([]byte(line), &res), line)
	return &res
}

func (th *testHarness) initialize() {
	th.t.Helper()
	th.send(`{"jsonrpc":"2.0","id":0,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"client","version":"0.0.1"}}}`)
	res := th.expectResponse()
	require.Nil(th.t, res.Error)
	th.send(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
}

func TestInitializeListAndCall(t *testing.T) {
	th := newHarness(t)
	th.initialize()
	assert.Equal(t, StateConnected, th.h.State())

	th.send(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	res := th.expectResponse()
	require.Nil(t, res.Error)
	var list mcp.ListToolsResult
	require.NoError(t, json.Unmarshal(res.Result, &list))
	require.Len(t, list.Tools, 1)
	assert.Equal(t, "greet", list.Tools[0].Name)

	th.send(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"greet","arguments":{"name":"ada"}}}`)
	res = th.expectResponse()
	require.Nil(t, res.Error)
	var call mcp.CallToolResult
	require.NoError(t, json.Unmarshal(res.Result, &call))
	assert.False(t, call.IsError)
	require.Len(t, call.Content, 1)
	assert.Equal(t, `"hello ada"`, call.Content[0].Text)
}

func TestResponsesFollowRequestOrder(t *testing.T) {
	th := newHarness(t)
	th.initialize()

	for i := 1; i <= 5; i++ {
		th.send(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"ping"}`, i))
	}
	for i := 1; i <= 5; i++ {
		res := th.expectResponse()
		assert.Equal(t, fmt.Sprint(i), res.ID.String())
	}
}

func TestBlankLinesAndGarbage(t *testing.T) {
	th := newHarness(t)

	th.send("")
	th.send("   ")
	th.send("{nope")
	res := th.expectResponse()
	require.NotNil(t, res.Error)
	assert.Equal(t, jsonrpc.ErrorCodeParseError, res.Error.Code)
	assert.True(t, res.ID.IsNil())

	th.send(`{"jsonrpc":"2.0","id":"after","method":"ping"}`)
	res = th.expectResponse()
	assert.Equal(t, "after", res.ID.String())
}

func TestEOFClosesHandler(t *testing.T) {
	th := newHarness(t)
	th.initialize()

	require.NoError(t, th.stdinW.Close())

	select {
	case err := <-th.serveErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return on EOF")
	}
	assert.Equal(t, StateClosed, th.h.State())
}

func TestCancelStopsServe(t *testing.T) {
	th := newHarness(t)
	th.cancel()

	select {
	case err := <-th.serveErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return on cancel")
	}
	assert.Equal(t, StateClosed, th.h.State())
}

func TestServeOnlyOnce(t *testing.T) {
	h := NewHandler(newTestEngine(t), WithReader(strings.NewReader("")), WithWriter(io.Discard))
	assert.Equal(t, StateDisconnected, h.State())
	require.NoError(t, h.Serve(context.Background()))
	assert.ErrorIs(t, h.Serve(context.Background()), ErrAlreadyServed)
}

func TestEOFLogsNegotiatedClient(t *testing.T) {
	var out, logs strings.Builder
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"desk","version":"2"}}}` + "\n")

	h := NewHandler(newTestEngine(t), WithReader(in), WithWriter(&out), WithUserID("tester"),
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))
	require.NoError(t, h.Serve(context.Background()))

	assert.Contains(t, out.String(), `"protocolVersion":"2025-03-26"`)
	var eof string
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, `"msg":"stdio.serve.eof"`) {
			eof = line
		}
	}
	require.NotEmpty(t, eof, logs.String())
	assert.Contains(t, eof, `"client":"desk"`)
	assert.Contains(t, eof, `"protocol_version":"2025-03-26"`)
}
