package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public Notion API root.
	DefaultBaseURL = "https://api.notion.com/v1"
	// DefaultVersion is the Notion-Version header sent with every request.
	DefaultVersion = "2022-06-28"

	userAgent = "notion-mcp-go/1.0.0"
)

// maxResponseSize bounds a single response body. Larger bodies fail rather
// than being cut short.
var maxResponseSize int64 = 32 << 20

// Config is the client configuration. It decodes from the environment with
// envdecode; APIKey has no default and must be supplied.
type Config struct {
	APIKey  string        `env:"NOTION_API_KEY"`
	BaseURL string        `env:"NOTION_BASE_URL,default=https://api.notion.com/v1"`
	Version string        `env:"NOTION_VERSION,default=2022-06-28"`
	Timeout time.Duration `env:"NOTION_TIMEOUT,default=30s"`
}

// Client is a thin Notion REST client. Request and response bodies are kept
// as raw JSON: the server relays them without interpreting their shape.
type Client struct {
	baseURL    string
	apiKey     string
	version    string
	httpClient *http.Client
	log        *slog.Logger

	Pages     *PagesService
	Databases *DatabasesService
	Blocks    *BlocksService
	Comments  *CommentsService
	Users     *UsersService
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New builds a Client from cfg. It fails with ErrMissingAPIKey when no
// credential is configured.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("notion: invalid base URL: %w", err)
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		version:    cfg.Version,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Pages = &PagesService{c: c}
	c.Databases = &DatabasesService{c: c}
	c.Blocks = &BlocksService{c: c}
	c.Comments = &CommentsService{c: c}
	c.Users = &UsersService{c: c}
	return c, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("notion: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WarnContext(ctx, "notion.request.fail", slog.String("method", method), slog.String("path", path), slog.String("err", err.Error()))
		return nil, fmt.Errorf("notion: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("notion: read response: %w", err)
	}
	if int64(len(data)) > maxResponseSize {
		c.log.WarnContext(ctx, "notion.response.too_large",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int64("limit", maxResponseSize))
		return nil, fmt.Errorf("notion: %s %s: %w", method, path, ErrResponseTooLarge)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp.StatusCode, data)
		c.log.WarnContext(ctx, "notion.request.error",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("code", apiErr.Code),
			slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return nil, apiErr
	}

	c.log.DebugContext(ctx, "notion.request.ok",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return json.RawMessage(data), nil
}

func escape(id string) string {
	return url.PathEscape(strings.TrimSpace(id))
}
