package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Comment parent kinds accepted by CommentsService.Create.
const (
	CommentOnPage       = "page_id"
	CommentOnDiscussion = "discussion_id"
)

// CommentsService covers the /comments endpoints.
type CommentsService struct {
	c *Client
}

// CreateCommentParams are the inputs of POST /comments.
type CreateCommentParams struct {
	ParentType string
	ParentID   string
	Text       string
}

// List returns unresolved comments on a block or page.
func (s *CommentsService) List(ctx context.Context, blockID string, p PageParams) (json.RawMessage, error) {
	q := p.query()
	q.Set("block_id", blockID)
	return s.c.get(ctx, "/comments", q)
}

// Create adds a comment to a page, or a reply to an existing discussion.
func (s *CommentsService) Create(ctx context.Context, p CreateCommentParams) (json.RawMessage, error) {
	b := newBody()
	switch p.ParentType {
	case CommentOnPage:
		b.set("parent.page_id", p.ParentID)
	case CommentOnDiscussion:
		b.set("discussion_id", p.ParentID)
	default:
		return nil, fmt.Errorf("notion: unsupported comment parent %q", p.ParentType)
	}
	body, err := b.setRaw("rich_text", richText(p.Text)).bytes()
	if err != nil {
		return nil, err
	}
	return s.c.do(ctx, http.MethodPost, "/comments", nil, body)
}
