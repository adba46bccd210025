package notion

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrMissingAPIKey is returned when no credential is configured.
var ErrMissingAPIKey = errors.New("NOTION_API_KEY is not set")

// ErrResponseTooLarge is returned when a response body exceeds the client's
// read limit.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error returns the API's message verbatim.
func (e *APIError) Error() string {
	return e.Message
}

func decodeAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	if gjson.ValidBytes(body) {
		r := gjson.ParseBytes(body)
		if r.Get("object").String() == "error" {
			e.Code = r.Get("code").String()
			e.Message = r.Get("message").String()
		}
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("%d %s", status, http.StatusText(status))
	}
	return e
}
