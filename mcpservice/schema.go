package mcpservice

import (
	"encoding/json"
	"fmt"

	"github.com/ggoodman/notion-mcp-go/mcp"
	gjs "github.com/google/jsonschema-go/jsonschema"
	"github.com/invopop/jsonschema"
)

// argumentSchema is the reflected shape of a tool's argument struct: the
// advertised descriptor plus one resolved validator per property.
type argumentSchema struct {
	input      mcp.ToolInputSchema
	validators map[string]*gjs.Resolved
	required   map[string]bool
}

// reflectArguments reflects a Go type A into a jsonschema.Schema and converts
// it to the simplified mcp.ToolInputSchema. Argument objects are closed:
// additionalProperties is always false.
func reflectArguments[A any]() (*argumentSchema, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(new(A))

	out := &argumentSchema{
		input: mcp.ToolInputSchema{
			Type:                 "object",
			Properties:           map[string]mcp.SchemaProperty{},
			AdditionalProperties: false,
		},
		validators: map[string]*gjs.Resolved{},
		required:   map[string]bool{},
	}

	// Only object schemas map cleanly to MCP ToolInputSchema.
	if s == nil || s.Type != "object" {
		return out, nil
	}

	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			out.input.Properties[el.Key] = toMCPProperty(el.Value)
			resolved, err := toValidator(el.Value).Resolve(nil)
			if err != nil {
				return nil, fmt.Errorf("resolve schema for %q: %w", el.Key, err)
			}
			out.validators[el.Key] = resolved
		}
	}
	if len(s.Required) > 0 {
		out.input.Required = append(out.input.Required, s.Required...)
		for _, name := range s.Required {
			out.required[name] = true
		}
	}
	return out, nil
}

// toMCPProperty recursively maps a jsonschema.Schema to the simplified MCP SchemaProperty.
func toMCPProperty(s *jsonschema.Schema) mcp.SchemaProperty {
	if s == nil {
		return mcp.SchemaProperty{}
	}
	p := mcp.SchemaProperty{
		Type:        s.Type,
		Description: s.Description,
		Minimum:     numberPtr(s.Minimum),
		Maximum:     numberPtr(s.Maximum),
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Type == "array" && s.Items != nil {
		item := toMCPProperty(s.Items)
		p.Items = &item
	}
	if s.Type == "object" && s.Properties != nil {
		m := make(map[string]mcp.SchemaProperty, s.Properties.Len())
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			m[el.Key] = toMCPProperty(el.Value)
		}
		p.Properties = m
	}
	return p
}

// toValidator keeps the structural keywords the dispatcher enforces: type,
// enum and numeric bounds.
func toValidator(s *jsonschema.Schema) *gjs.Schema {
	v := &gjs.Schema{
		Type:    s.Type,
		Minimum: numberPtr(s.Minimum),
		Maximum: numberPtr(s.Maximum),
	}
	if len(s.Enum) > 0 {
		v.Enum = append([]any(nil), s.Enum...)
	}
	if s.Type == "array" && s.Items != nil {
		v.Items = toValidator(s.Items)
	}
	return v
}

func numberPtr(n json.Number) *float64 {
	if n == "" {
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil
	}
	return &f
}
