package notion

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Results extracts the results array of a list response. A response
// without one yields an empty array.
func Results(resp json.RawMessage) json.RawMessage {
	r := gjson.GetBytes(resp, "results")
	if !r.Exists() {
		return json.RawMessage("[]")
	}
	return json.RawMessage(r.Raw)
}

// Paginated reduces a list response to results, has_more and next_cursor.
func Paginated(resp json.RawMessage) (json.RawMessage, error) {
	out := []byte(`{}`)
	out, err := sjson.SetRawBytes(out, "results", Results(resp))
	if err != nil {
		return nil, err
	}
	out, err = sjson.SetBytes(out, "has_more", gjson.GetBytes(resp, "has_more").Bool())
	if err != nil {
		return nil, err
	}
	next := gjson.GetBytes(resp, "next_cursor")
	if next.Type == gjson.String {
		out, err = sjson.SetBytes(out, "next_cursor", next.String())
	} else {
		out, err = sjson.SetRawBytes(out, "next_cursor", []byte("null"))
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}
