package notion

import (
	"context"
	"encoding/json"
	"net/http"
)

// PagesService covers the /pages endpoints.
type PagesService struct {
	c *Client
}

// CreatePageParams are the inputs of POST /pages. ParentType is
// "database_id" or "page_id".
type CreatePageParams struct {
	ParentType string
	ParentID   string
	Properties json.RawMessage
	Children   json.RawMessage
	Icon       string
}

// UpdatePageParams are the inputs of PATCH /pages/{id}.
type UpdatePageParams struct {
	Properties json.RawMessage
	Archived   *bool
	Icon       string
}

// Retrieve fetches a page and its properties.
func (s *PagesService) Retrieve(ctx context.Context, id string) (json.RawMessage, error) {
	return s.c.get(ctx, "/pages/"+escape(id), nil)
}

// Create creates a page under a database or another page.
func (s *PagesService) Create(ctx context.Context, p CreatePageParams) (json.RawMessage, error) {
	b := newBody().
		set("parent."+p.ParentType, p.ParentID).
		setRaw("properties", p.Properties).
		setRaw("children", p.Children)
	setIcon(b, p.Icon)
	body, err := b.bytes()
	if err != nil {
		return nil, err
	}
	return s.c.do(ctx, http.MethodPost, "/pages", nil, body)
}

// Update changes page properties, icon or archived state.
func (s *PagesService) Update(ctx context.Context, id string, p UpdatePageParams) (json.RawMessage, error) {
	b := newBody().setRaw("properties", p.Properties)
	if p.Archived != nil {
		b.set("archived", *p.Archived)
	}
	setIcon(b, p.Icon)
	body, err := b.bytes()
	if err != nil {
		return nil, err
	}
	return s.c.do(ctx, http.MethodPatch, "/pages/"+escape(id), nil, body)
}

func setIcon(b *body, emoji string) {
	if emoji == "" {
		return
	}
	b.set("icon.type", "emoji").set("icon.emoji", emoji)
}
