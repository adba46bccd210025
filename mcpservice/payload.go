package mcpservice

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/tidwall/gjson"
)

// JSONObject is a string argument whose value must be a serialized JSON
// object. It keeps the advertised schema flat for payloads whose shape is
// owned by the Notion API, such as page properties or query filters.
type JSONObject string

// JSONArray is a string argument whose value must be a serialized JSON
// array, such as a list of blocks or sorts.
type JSONArray string

var (
	errNotJSON       = errors.New("value is not valid JSON")
	errNotJSONObject = errors.New("value must be a JSON object")
	errNotJSONArray  = errors.New("value must be a JSON array")
)

// IsSet reports whether a value was supplied.
func (j JSONObject) IsSet() bool { return strings.TrimSpace(string(j)) != "" }

// Raw returns the payload for embedding in an outgoing request body.
func (j JSONObject) Raw() json.RawMessage { return json.RawMessage(strings.TrimSpace(string(j))) }

func (j JSONObject) checkPayload() error {
	s := strings.TrimSpace(string(j))
	if !gjson.Valid(s) {
		return errNotJSON
	}
	if !gjson.Parse(s).IsObject() {
		return errNotJSONObject
	}
	return nil
}

// IsSet reports whether a value was supplied.
func (j JSONArray) IsSet() bool { return strings.TrimSpace(string(j)) != "" }

// Raw returns the payload for embedding in an outgoing request body.
func (j JSONArray) Raw() json.RawMessage { return json.RawMessage(strings.TrimSpace(string(j))) }

func (j JSONArray) checkPayload() error {
	s := strings.TrimSpace(string(j))
	if !gjson.Valid(s) {
		return errNotJSON
	}
	if !gjson.Parse(s).IsArray() {
		return errNotJSONArray
	}
	return nil
}

type payloadChecker interface {
	IsSet() bool
	checkPayload() error
}

var payloadCheckerType = reflect.TypeOf((*payloadChecker)(nil)).Elem()

// payloadField locates one JSON-text field inside an argument struct.
type payloadField struct {
	name     string
	index    []int
	required bool
}

// payloadFields lists the JSON-text fields of struct type t.
func payloadFields(t reflect.Type, required map[string]bool) []payloadField {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var out []payloadField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || !f.Type.Implements(payloadCheckerType) {
			continue
		}
		name := jsonFieldName(f)
		if name == "-" {
			continue
		}
		out = append(out, payloadField{name: name, index: f.Index, required: required[name]})
	}
	return out
}

// checkPayloads parses every JSON-text field of v, which must be a struct
// value. Unset optional fields are skipped.
func checkPayloads(v reflect.Value, fields []payloadField) error {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	for _, pf := range fields {
		pc := v.FieldByIndex(pf.index).Interface().(payloadChecker)
		if !pc.IsSet() {
			if pf.required {
				return MalformedPayloadError(pf.name, errNotJSON)
			}
			continue
		}
		if err := pc.checkPayload(); err != nil {
			return MalformedPayloadError(pf.name, err)
		}
	}
	return nil
}

func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}
