package mcpservice

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// DefaultMaxResponseChars bounds the text returned for one tool call.
const DefaultMaxResponseChars = 8000

// TruncationMarker is appended to output cut at the response bound.
const TruncationMarker = "\n... (truncated)"

var prettyOptions = &pretty.Options{Indent: "  "}

// Format renders v as indented JSON and bounds it to maxLength characters
// (Unicode code points). Longer output keeps exactly maxLength characters
// followed by TruncationMarker. A non-positive maxLength selects
// DefaultMaxResponseChars. Format never fails: values that cannot be
// marshaled are rendered with fmt.
func Format(v any, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxResponseChars
	}
	return truncate(canonical(v), maxLength)
}

func canonical(v any) string {
	var raw []byte
	switch t := v.(type) {
	case nil:
		return "null"
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		raw = b
	}
	if !gjson.ValidBytes(raw) {
		return string(raw)
	}
	return strings.TrimSuffix(string(pretty.PrettyOptions(raw, prettyOptions)), "\n")
}

func truncate(s string, maxLength int) string {
	n := 0
	for i := range s {
		if n == maxLength {
			return s[:i] + TruncationMarker
		}
		n++
	}
	return s
}
