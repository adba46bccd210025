package notion

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/tidwall/sjson"
)

// body assembles a request document with sjson so caller-supplied JSON is
// embedded without a decode and re-encode round trip.
type body struct {
	buf []byte
	err error
}

func newBody() *body { return &body{buf: []byte(`{}`)} }

// newBodyFrom starts from an existing JSON object.
func newBodyFrom(raw json.RawMessage) *body {
	if len(raw) == 0 {
		return newBody()
	}
	return &body{buf: append([]byte(nil), raw...)}
}

func (b *body) set(path string, v any) *body {
	if b.err != nil {
		return b
	}
	b.buf, b.err = sjson.SetBytes(b.buf, path, v)
	return b
}

// setRaw embeds raw JSON at path. Empty input is skipped.
func (b *body) setRaw(path string, raw json.RawMessage) *body {
	if b.err != nil || len(raw) == 0 {
		return b
	}
	b.buf, b.err = sjson.SetRawBytes(b.buf, path, raw)
	return b
}

func (b *body) bytes() ([]byte, error) {
	return b.buf, b.err
}

type textContent struct {
	Content string `json:"content"`
}

type richTextItem struct {
	Type string      `json:"type"`
	Text textContent `json:"text"`
}

// richText renders plain text as a single-item rich text array.
func richText(s string) json.RawMessage {
	b, _ := json.Marshal([]richTextItem{{Type: "text", Text: textContent{Content: s}}})
	return b
}

// PageParams selects one page of a paginated listing.
type PageParams struct {
	PageSize    int
	StartCursor string
}

func (p PageParams) query() url.Values {
	q := url.Values{}
	if p.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(p.PageSize))
	}
	if p.StartCursor != "" {
		q.Set("start_cursor", p.StartCursor)
	}
	return q
}

func (p PageParams) apply(b *body) *body {
	if p.PageSize > 0 {
		b.set("page_size", p.PageSize)
	}
	if p.StartCursor != "" {
		b.set("start_cursor", p.StartCursor)
	}
	return b
}
