package notion

import (
	"context"
	"encoding/json"
	"net/http"
)

// BlocksService covers the /blocks endpoints.
type BlocksService struct {
	c *Client
}

// UpdateBlockParams are the inputs of PATCH /blocks/{id}. Data is the
// block-type payload, for example {"paragraph":{...}}; Archived is merged
// into it when set.
type UpdateBlockParams struct {
	Data     json.RawMessage
	Archived *bool
}

// Children lists the direct children of a block or page.
func (s *BlocksService) Children(ctx context.Context, id string, p PageParams) (json.RawMessage, error) {
	return s.c.get(ctx, "/blocks/"+escape(id)+"/children", p.query())
}

// Append adds children (a JSON array of blocks) after the last child.
func (s *BlocksService) Append(ctx context.Context, id string, children json.RawMessage) (json.RawMessage, error) {
	body, err := newBody().setRaw("children", children).bytes()
	if err != nil {
		return nil, err
	}
	return s.c.do(ctx, http.MethodPatch, "/blocks/"+escape(id)+"/children", nil, body)
}

// Update changes a block's content or archived state.
func (s *BlocksService) Update(ctx context.Context, id string, p UpdateBlockParams) (json.RawMessage, error) {
	b := newBodyFrom(p.Data)
	if p.Archived != nil {
		b.set("archived", *p.Archived)
	}
	body, err := b.bytes()
	if err != nil {
		return nil, err
	}
	return s.c.do(ctx, http.MethodPatch, "/blocks/"+escape(id), nil, body)
}

// Delete archives a block.
func (s *BlocksService) Delete(ctx context.Context, id string) (json.RawMessage, error) {
	return s.c.do(ctx, http.MethodDelete, "/blocks/"+escape(id), nil, nil)
}
