package notion

import (
	"context"
	"encoding/json"
	"net/http"
)

// DatabasesService covers the /databases endpoints.
type DatabasesService struct {
	c *Client
}

// QueryDatabaseParams are the inputs of POST /databases/{id}/query.
type QueryDatabaseParams struct {
	Filter json.RawMessage
	Sorts  json.RawMessage
	PageParams
}

// CreateDatabaseParams are the inputs of POST /databases.
type CreateDatabaseParams struct {
	ParentPageID string
	Title        string
	Properties   json.RawMessage
	Icon         string
}

// UpdateDatabaseParams are the inputs of PATCH /databases/{id}. Empty
// fields are left unchanged.
type UpdateDatabaseParams struct {
	Title      string
	Properties json.RawMessage
}

// Retrieve fetches a database and its schema.
func (s *DatabasesService) Retrieve(ctx context.Context, id string) (json.RawMessage, error) {
	return s.c.get(ctx, "/databases/"+escape(id), nil)
}

// Query returns one page of database entries.
func (s *DatabasesService) Query(ctx context.Context, id string, p QueryDatabaseParams) (json.RawMessage, error) {
	b := newBody().setRaw("filter", p.Filter).setRaw("sorts", p.Sorts)
	body, err := p.apply(b).bytes()
	if err != nil {
		return nil, err
	}
	return s.c.do(ctx, http.MethodPost, "/databases/"+escape(id)+"/query", nil, body)
}

// Create creates an inline database under a page.
func (s *DatabasesService) Create(ctx context.Context, p CreateDatabaseParams) (json.RawMessage, error) {
	b := newBody().
		set("parent.type", "page_id").
		set("parent.page_id", p.ParentPageID).
		setRaw("title", richText(p.Title)).
		setRaw("properties", p.Properties)
	setIcon(b, p.Icon)
	body, err := b.bytes()
	if err != nil {
		return nil, err
	}
	return s.c.do(ctx, http.MethodPost, "/databases", nil, body)
}

// Update changes a database title or property schema.
func (s *DatabasesService) Update(ctx context.Context, id string, p UpdateDatabaseParams) (json.RawMessage, error) {
	b := newBody().setRaw("properties", p.Properties)
	if p.Title != "" {
		b.setRaw("title", richText(p.Title))
	}
	body, err := b.bytes()
	if err != nil {
		return nil, err
	}
	return s.c.do(ctx, http.MethodPatch, "/databases/"+escape(id), nil, body)
}
