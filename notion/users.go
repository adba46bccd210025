package notion

import (
	"context"
	"encoding/json"
)

// UsersService covers the /users endpoints.
type UsersService struct {
	c *Client
}

// List returns the workspace members visible to the integration.
func (s *UsersService) List(ctx context.Context) (json.RawMessage, error) {
	return s.c.get(ctx, "/users", nil)
}

// Retrieve fetches one user.
func (s *UsersService) Retrieve(ctx context.Context, id string) (json.RawMessage, error) {
	return s.c.get(ctx, "/users/"+escape(id), nil)
}
