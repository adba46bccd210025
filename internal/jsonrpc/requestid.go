package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID is a request id as it appeared on the wire: a string or a
// number. Integral numbers are held as int64 so the id is echoed back
// without a fractional part. A nil *RequestID stands for an absent id.
type RequestID struct {
	str   string
	num   float64
	isInt bool
	isNum bool
	set   bool
}

// String renders the id for logs and map keys. Absent ids render as "".
func (id *RequestID) String() string {
	switch {
	case id.IsNil():
		return ""
	case id.isInt:
		return strconv.FormatInt(int64(id.num), 10)
	case id.isNum:
		return strconv.FormatFloat(id.num, 'g', -1, 64)
	default:
		return id.str
	}
}

// IsNil reports whether the id is absent.
func (id *RequestID) IsNil() bool {
	return id == nil || !id.set
}

func (id *RequestID) MarshalJSON() ([]byte, error) {
	switch {
	case id.IsNil():
		return []byte("null"), nil
	case id.isInt:
		return strconv.AppendInt(nil, int64(id.num), 10), nil
	case id.isNum:
		return json.Marshal(id.num)
	default:
		return json.Marshal(id.str)
	}
}

func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*id = RequestID{}
	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case len(data) > 0 && data[0] == '"':
		if err := json.Unmarshal(data, &id.str); err != nil {
			return err
		}
		id.set = true
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("JSON-RPC id must be a string or number, got: %s", data)
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("JSON-RPC id: %w", err)
	}
	id.num, id.isNum, id.set = f, true, true
	id.isInt = f == float64(int64(f))
	return nil
}
