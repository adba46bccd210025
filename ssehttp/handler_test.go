package ssehttp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ggoodman/notion-mcp-go/internal/engine"
	"github.com/ggoodman/notion-mcp-go/internal/logctx"
	"github.com/ggoodman/notion-mcp-go/internal/notiontools"
	"github.com/ggoodman/notion-mcp-go/mcpservice"
	"github.com/ggoodman/notion-mcp-go/notion"
	"github.com/ggoodman/notion-mcp-go/sessions"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeNotionSearch answers POST /search with a fixed page of results and
// counts the calls it receives.
func fakeNotionSearch(t *testing.T, calls *atomic.Int32) *notion.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"object":"error","status":404,"code":"object_not_found","message":"not found"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","results":[{"object":"page","id":"p1"},{"object":"page","id":"p2"}],"has_more":false,"next_cursor":null}`)
	}))
	t.Cleanup(srv.Close)
	c, err := notion.New(notion.Config{APIKey: "secret_test", BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *Handler, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	reg := mcpservice.NewRegistry()
	notiontools.Register(reg, notion.Static(fakeNotionSearch(t, &calls)))
	reg.Seal()

	srv, h := newServerWithRegistry(t, reg, opts...)
	return srv, h, &calls
}

func newServerWithRegistry(t *testing.T, reg *mcpservice.Registry, opts ...Option) (*httptest.Server, *Handler) {
	t.Helper()
	eng := engine.NewEngine(mcpservice.NewDispatcher(reg, mcpservice.WithDispatchLogger(quiet)), engine.WithLogger(quiet))
	h := New(eng, sessions.NewRegistry(), append([]Option{WithLogger(quiet)}, opts...)...)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return srv, h
}

// syncBuffer is a log sink safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// logLine returns the first JSON log line carrying msg.
func (b *syncBuffer) logLine(msg string) (string, bool) {
	for _, line := range strings.Split(b.String(), "\n") {
		if strings.Contains(line, `"msg":"`+msg+`"`) {
			return line, true
		}
	}
	return "", false
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestPostToUnknownSessionIsRejected(t *testing.T) {
	srv, h, calls := newTestServer(t)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"notion_search","arguments":{"query":"x"}}}`
	cases := []struct {
		name        string
		target      string
		contentType string
	}{
		{"unknown id", "/messages?sessionId=ghost", "application/json"},
		{"missing id", "/messages", "application/json"},
		{"unknown id without content type", "/messages?sessionId=ghost", ""},
		{"unknown id with wrong content type", "/messages?sessionId=ghost", "text/plain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, srv.URL+tc.target, strings.NewReader(body))
			require.NoError(t, err)
			if tc.contentType != "" {
				req.Header.Set("Content-Type", tc.contentType)
			}
			res, err := http.DefaultClient.Do(req)
			require.NoError(t, err)

			var eb errorBody
			require.NoError(t, json.NewDecoder(res.Body).Decode(&eb))
			res.Body.Close()

			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			assert.Equal(t, 400, eb.Error.Code)
			assert.Equal(t, "SessionNotFound", eb.Error.Kind)
			assert.NotEmpty(t, eb.Error.Message)
		})
	}
	assert.Zero(t, calls.Load())
	assert.Zero(t, h.Sessions().Len())
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","tools":"notion-mcp","transport":"sse","version":"1.0.0"}`, string(data))
}

func TestMetricsRoute(t *testing.T) {
	srv, _, _ := newTestServer(t, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "# metrics\n")
	})))

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestPostRequiresJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	endpoint, _, stream := openStream(t, ctx, srv.URL)
	defer stream.Body.Close()

	for _, ct := range []string{"text/plain", ""} {
		req, err := http.NewRequest(http.MethodPost, srv.URL+endpoint, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
		require.NoError(t, err)
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusUnsupportedMediaType, res.StatusCode, ct)
	}
}

func TestRequestLogGroupsAppearOnce(t *testing.T) {
	var buf syncBuffer
	// Already wrapped, the way the application builds its logger.
	log := slog.New(logctx.New(slog.NewJSONHandler(&buf, nil)))
	srv, _, _ := newTestServer(t, WithLogger(log))

	res, err := http.Post(srv.URL+"/messages?sessionId=ghost", "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.NoError(t, err)
	res.Body.Close()

	var line string
	require.Eventually(t, func() bool {
		var ok bool
		line, ok = buf.logLine("session.lookup.miss")
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, strings.Count(line, `"req":`), line)
}

func TestStreamRequiresEventStreamAccept(t *testing.T) {
	srv, h, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/sse", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, http.StatusNotAcceptable, res.StatusCode)
	assert.Zero(t, h.Sessions().Len())
}

// openStream opens GET /sse and returns the advertised endpoint plus a reader
// positioned after the endpoint event.
func openStream(t *testing.T, ctx context.Context, base string) (string, *bufio.Reader, *http.Response) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/sse", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	br := bufio.NewReader(res.Body)
	event, data := readEvent(t, br)
	require.Equal(t, "endpoint", event)
	require.True(t, strings.HasPrefix(data, "/messages?sessionId="), data)
	return data, br, res
}

func readEvent(t *testing.T, br *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if event != "" || data != "" {
				return event, data
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestResponsesArriveOnStream(t *testing.T) {
	srv, _, _ := newTestServer(t, WithKeepAlive(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	endpoint, br, res := openStream(t, ctx, srv.URL)
	defer res.Body.Close()

	post, err := http.Post(srv.URL+endpoint, "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":"p1","method":"ping"}`))
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusAccepted, post.StatusCode)

	event, data := readEvent(t, br)
	assert.Equal(t, "message", event)
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":{},"id":"p1"}`, data)
}

func TestPostRejectsBadBodies(t *testing.T) {
	srv, _, _ := newTestServer(t, WithMaxBodyBytes(64))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	endpoint, _, res := openStream(t, ctx, srv.URL)
	defer res.Body.Close()

	for _, body := range []string{
		`{"broken`,
		`[{"jsonrpc":"2.0","id":1,"method":"ping"}]`,
		`{"jsonrpc":"2.0","id":1,"method":"ping","params":{"padding":"` + strings.Repeat("x", 100) + `"}}`,
	} {
		post, err := http.Post(srv.URL+endpoint, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		post.Body.Close()
		assert.Equal(t, http.StatusBadRequest, post.StatusCode, body)
	}
}

func TestSessionDeregisteredOnDisconnect(t *testing.T) {
	srv, h, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	endpoint, _, res := openStream(t, ctx, srv.URL)
	assert.Equal(t, 1, h.Sessions().Len())

	cancel()
	res.Body.Close()

	require.Eventually(t, func() bool { return h.Sessions().Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	post, err := http.Post(srv.URL+endpoint, "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusBadRequest, post.StatusCode)
}

func TestCloseEndsStreams(t *testing.T) {
	srv, h, _ := newTestServer(t)

	_, br, res := openStream(t, context.Background(), srv.URL)
	defer res.Body.Close()

	h.Close()

	_, err := io.ReadAll(br)
	assert.NoError(t, err)
	assert.Zero(t, h.Sessions().Len())
}

func TestSDKClientRoundTrip(t *testing.T) {
	srv, _, calls := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "sse-test", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, &mcpsdk.SSEClientTransport{Endpoint: srv.URL + "/sse"}, nil)
	require.NoError(t, err)
	defer cs.Close()

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, "notion_search")

	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "notion_search",
		Arguments: map[string]any{"query": "roadmap", "page_size": 10},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, `"p1"`)
	assert.Equal(t, int32(1), calls.Load())

	res, err = cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: "notion_nope", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

type holdArgs struct {
	Label string `json:"label,omitempty"`
}

func TestDisconnectDuringToolCall(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	reg := mcpservice.NewRegistry()
	reg.MustRegister(mcpservice.NewTool("hold", func(ctx context.Context, a holdArgs) (any, error) {
		once.Do(func() { close(started) })
		<-release
		return "released", nil
	}))
	reg.Seal()

	var buf syncBuffer
	srv, h := newServerWithRegistry(t, reg, WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))

	ctx, cancel := context.WithCancel(context.Background())
	endpoint, br, stream := openStream(t, ctx, srv.URL)

	initRes, err := http.Post(srv.URL+endpoint, "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":0,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"hold-client","version":"1"}}}`))
	require.NoError(t, err)
	initRes.Body.Close()
	event, _ := readEvent(t, br)
	require.Equal(t, "message", event)

	post, err := http.Post(srv.URL+endpoint, "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"hold","arguments":{}}}`))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusAccepted, post.StatusCode)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("tool never started")
	}

	cancel()
	stream.Body.Close()
	require.Eventually(t, func() bool { return h.Sessions().Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool {
		_, ok := buf.logLine("sse.message.discarded")
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	end, ok := buf.logLine("sse.stream.end")
	require.True(t, ok)
	assert.Contains(t, end, `"client":"hold-client"`)
	assert.Contains(t, end, `"protocol_version":"2024-11-05"`)

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	endpoint2, br2, stream2 := openStream(t, ctx2, srv.URL)
	defer stream2.Body.Close()

	ping, err := http.Post(srv.URL+endpoint2, "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":"again","method":"ping"}`))
	require.NoError(t, err)
	ping.Body.Close()

	event, data := readEvent(t, br2)
	assert.Equal(t, "message", event)
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":{},"id":"again"}`, data)
}
