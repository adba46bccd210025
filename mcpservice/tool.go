package mcpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/ggoodman/notion-mcp-go/mcp"
)

// ToolFunc handles a tool invocation with validated, typed arguments. The
// returned value is formatted into the text result; errors are classified by
// the dispatcher.
type ToolFunc[A any] func(ctx context.Context, args A) (any, error)

// Tool pairs an MCP tool descriptor with its argument schema and an invoker
// that decodes raw arguments into the handler's argument type.
type Tool struct {
	Descriptor mcp.Tool

	schema *argumentSchema
	invoke func(ctx context.Context, raw json.RawMessage) (any, error)
}

// ToolOption configures NewTool behavior.
type ToolOption func(*toolConfig)

type toolConfig struct {
	description string
}

// WithToolDescription sets the tool description used in listings.
func WithToolDescription(desc string) ToolOption {
	return func(c *toolConfig) { c.description = desc }
}

// NewTool constructs a Tool from a typed args struct A. It:
//   - reflects a JSON Schema from A using invopop/jsonschema
//   - down-converts it to MCP's simplified ToolInputSchema
//   - resolves one validator per property for the dispatcher
//   - records which fields carry JSON text (JSONObject, JSONArray)
//
// NewTool panics if A cannot be reflected; tools are declared at startup.
func NewTool[A any](name string, fn ToolFunc[A], opts ...ToolOption) Tool {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	schema, err := reflectArguments[A]()
	if err != nil {
		panic(fmt.Sprintf("mcpservice: tool %q: %v", name, err))
	}

	payloads := payloadFields(reflect.TypeOf((*A)(nil)).Elem(), schema.required)

	invoke := func(ctx context.Context, raw json.RawMessage) (any, error) {
		var a A
		if err := decodeArguments(raw, &a); err != nil {
			return nil, err
		}
		if err := checkPayloads(reflect.ValueOf(a), payloads); err != nil {
			return nil, err
		}
		return fn(ctx, a)
	}

	return Tool{
		Descriptor: mcp.Tool{
			Name:        name,
			Description: cfg.description,
			InputSchema: schema.input,
		},
		schema: schema,
		invoke: invoke,
	}
}

// decodeArguments decodes raw into dst. Integral numbers written in float
// or exponent form ("10.0", "1e1") are accepted by the schema validator as
// integers, so they are rewritten to plain integers before the typed decode.
func decodeArguments(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return InvalidArgumentsError("", "arguments are not valid JSON")
	}
	normalized, err := json.Marshal(normalizeNumbers(v))
	if err != nil {
		return InvalidArgumentsError("", "arguments are not valid JSON")
	}
	if err := json.Unmarshal(normalized, dst); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return InvalidArgumentsError(te.Field, "expected %s, got %s", te.Type.Kind(), te.Value)
		}
		return InvalidArgumentsError("", "arguments do not match the tool schema")
	}
	return nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			return t
		}
		f, err := t.Float64()
		if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return t
		}
		return json.Number(strconv.FormatInt(int64(f), 10))
	default:
		return v
	}
}

// TextResult is a small helper to build a text CallToolResult.
func TextResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: s}}}
}

// Errorf returns an error CallToolResult with a single text block and IsError=true.
func Errorf(format string, a ...any) *mcp.CallToolResult {
	msg := fmt.Sprintf(format, a...)
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: msg}}, IsError: true}
}
