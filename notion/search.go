package notion

import (
	"context"
	"encoding/json"
	"net/http"
)

// SearchParams are the inputs of POST /search. Filter restricts results to
// "page" or "database" objects when set.
type SearchParams struct {
	Query  string
	Filter string
	PageParams
}

// Search searches every page and database shared with the integration.
func (c *Client) Search(ctx context.Context, p SearchParams) (json.RawMessage, error) {
	b := newBody().set("query", p.Query)
	if p.Filter != "" {
		b.set("filter.value", p.Filter).set("filter.property", "object")
	}
	body, err := p.apply(b).bytes()
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/search", nil, body)
}
