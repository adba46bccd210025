// Package notiontools declares the Notion tool catalog: one typed argument
// struct and one thin adapter per Notion API call.
package notiontools

import (
	"context"
	"encoding/json"

	"github.com/ggoodman/notion-mcp-go/mcpservice"
	"github.com/ggoodman/notion-mcp-go/notion"
)

const (
	defaultSearchPageSize   = 20
	defaultQueryPageSize    = 50
	defaultChildrenPageSize = 100
	defaultCommentsPageSize = 50
)

// ClientProvider hands out the shared Notion client. *notion.Lazy
// implements it.
type ClientProvider interface {
	Client() (*notion.Client, error)
}

// Register adds every Notion tool to reg.
func Register(reg *mcpservice.Registry, clients ClientProvider) {
	reg.MustRegister(Tools(clients)...)
}

// call adapts a Notion API call into a tool handler. The client is resolved
// per call so a construction failure surfaces as ConfigurationError.
func call[A any](clients ClientProvider, fn func(ctx context.Context, c *notion.Client, a A) (any, error)) mcpservice.ToolFunc[A] {
	return func(ctx context.Context, a A) (any, error) {
		c, err := clients.Client()
		if err != nil {
			return nil, mcpservice.ConfigurationError(err)
		}
		return fn(ctx, c, a)
	}
}

// Tools returns the catalog in listing order.
func Tools(clients ClientProvider) []mcpservice.Tool {
	return []mcpservice.Tool{
		mcpservice.NewTool("notion_search",
			call(clients, func(ctx context.Context, c *notion.Client, a SearchArgs) (any, error) {
				resp, err := c.Search(ctx, notion.SearchParams{
					Query:      a.Query,
					Filter:     a.Filter,
					PageParams: notion.PageParams{PageSize: pageSizeOr(a.PageSize, defaultSearchPageSize)},
				})
				if err != nil {
					return nil, err
				}
				return notion.Results(resp), nil
			}),
			mcpservice.WithToolDescription("Search pages and databases in the Notion workspace by title."),
		),
		mcpservice.NewTool("notion_get_page",
			call(clients, func(ctx context.Context, c *notion.Client, a GetPageArgs) (any, error) {
				return c.Pages.Retrieve(ctx, a.PageID)
			}),
			mcpservice.WithToolDescription("Retrieve a Notion page and its properties."),
		),
		mcpservice.NewTool("notion_create_page",
			call(clients, func(ctx context.Context, c *notion.Client, a CreatePageArgs) (any, error) {
				return c.Pages.Create(ctx, notion.CreatePageParams{
					ParentType: a.ParentType,
					ParentID:   a.ParentID,
					Properties: a.Properties.Raw(),
					Children:   optionalRaw(a.Children),
					Icon:       a.Icon,
				})
			}),
			mcpservice.WithToolDescription("Create a page in a database or under another page. Properties and children are JSON strings."),
		),
		mcpservice.NewTool("notion_update_page",
			call(clients, func(ctx context.Context, c *notion.Client, a UpdatePageArgs) (any, error) {
				return c.Pages.Update(ctx, a.PageID, notion.UpdatePageParams{
					Properties: a.Properties.Raw(),
					Archived:   a.Archived,
					Icon:       a.Icon,
				})
			}),
			mcpservice.WithToolDescription("Update page properties, icon or archived state. Properties is a JSON string."),
		),
		mcpservice.NewTool("notion_get_database",
			call(clients, func(ctx context.Context, c *notion.Client, a GetDatabaseArgs) (any, error) {
				return c.Databases.Retrieve(ctx, a.DatabaseID)
			}),
			mcpservice.WithToolDescription("Retrieve a Notion database and its property schema."),
		),
		mcpservice.NewTool("notion_query_database",
			call(clients, func(ctx context.Context, c *notion.Client, a QueryDatabaseArgs) (any, error) {
				resp, err := c.Databases.Query(ctx, a.DatabaseID, notion.QueryDatabaseParams{
					Filter: optionalRaw(a.Filter),
					Sorts:  optionalRaw(a.Sorts),
					PageParams: notion.PageParams{
						PageSize:    pageSizeOr(a.PageSize, defaultQueryPageSize),
						StartCursor: a.StartCursor,
					},
				})
				if err != nil {
					return nil, err
				}
				return notion.Paginated(resp)
			}),
			mcpservice.WithToolDescription("Query database entries with optional filter and sorts (JSON strings). Returns results, has_more and next_cursor."),
		),
		mcpservice.NewTool("notion_create_database",
			call(clients, func(ctx context.Context, c *notion.Client, a CreateDatabaseArgs) (any, error) {
				return c.Databases.Create(ctx, notion.CreateDatabaseParams{
					ParentPageID: a.ParentPageID,
					Title:        a.Title,
					Properties:   a.Properties.Raw(),
					Icon:         a.Icon,
				})
			}),
			mcpservice.WithToolDescription("Create a database under a page. Properties is a JSON string describing the schema."),
		),
		mcpservice.NewTool("notion_update_database",
			call(clients, func(ctx context.Context, c *notion.Client, a UpdateDatabaseArgs) (any, error) {
				return c.Databases.Update(ctx, a.DatabaseID, notion.UpdateDatabaseParams{
					Title:      a.Title,
					Properties: optionalRaw(a.Properties),
				})
			}),
			mcpservice.WithToolDescription("Update a database title or property schema."),
		),
		mcpservice.NewTool("notion_get_block_children",
			call(clients, func(ctx context.Context, c *notion.Client, a GetBlockChildrenArgs) (any, error) {
				resp, err := c.Blocks.Children(ctx, a.BlockID, notion.PageParams{
					PageSize:    pageSizeOr(a.PageSize, defaultChildrenPageSize),
					StartCursor: a.StartCursor,
				})
				if err != nil {
					return nil, err
				}
				return notion.Paginated(resp)
			}),
			mcpservice.WithToolDescription("List the content blocks of a page or block. Returns results, has_more and next_cursor."),
		),
		mcpservice.NewTool("notion_append_blocks",
			call(clients, func(ctx context.Context, c *notion.Client, a AppendBlocksArgs) (any, error) {
				return c.Blocks.Append(ctx, a.BlockID, a.Children.Raw())
			}),
			mcpservice.WithToolDescription("Append content blocks to a page or block. Children is a JSON array string."),
		),
		mcpservice.NewTool("notion_update_block",
			call(clients, func(ctx context.Context, c *notion.Client, a UpdateBlockArgs) (any, error) {
				return c.Blocks.Update(ctx, a.BlockID, notion.UpdateBlockParams{
					Data:     a.BlockData.Raw(),
					Archived: a.Archived,
				})
			}),
			mcpservice.WithToolDescription("Update a block's content. Block data is a JSON object string keyed by block type."),
		),
		mcpservice.NewTool("notion_delete_block",
			call(clients, func(ctx context.Context, c *notion.Client, a DeleteBlockArgs) (any, error) {
				return c.Blocks.Delete(ctx, a.BlockID)
			}),
			mcpservice.WithToolDescription("Delete (archive) a block."),
		),
		mcpservice.NewTool("notion_list_comments",
			call(clients, func(ctx context.Context, c *notion.Client, a ListCommentsArgs) (any, error) {
				return c.Comments.List(ctx, a.BlockID, notion.PageParams{
					PageSize:    pageSizeOr(a.PageSize, defaultCommentsPageSize),
					StartCursor: a.StartCursor,
				})
			}),
			mcpservice.WithToolDescription("List unresolved comments on a page or block."),
		),
		mcpservice.NewTool("notion_add_comment",
			call(clients, func(ctx context.Context, c *notion.Client, a AddCommentArgs) (any, error) {
				return c.Comments.Create(ctx, notion.CreateCommentParams{
					ParentType: a.ParentType,
					ParentID:   a.ParentID,
					Text:       a.Text,
				})
			}),
			mcpservice.WithToolDescription("Comment on a page, or reply to an existing discussion."),
		),
		mcpservice.NewTool("notion_list_users",
			call(clients, func(ctx context.Context, c *notion.Client, _ ListUsersArgs) (any, error) {
				resp, err := c.Users.List(ctx)
				if err != nil {
					return nil, err
				}
				return notion.Results(resp), nil
			}),
			mcpservice.WithToolDescription("List the users of the Notion workspace."),
		),
		mcpservice.NewTool("notion_get_user",
			call(clients, func(ctx context.Context, c *notion.Client, a GetUserArgs) (any, error) {
				return c.Users.Retrieve(ctx, a.UserID)
			}),
			mcpservice.WithToolDescription("Retrieve a Notion user."),
		),
	}
}

type rawPayload interface {
	IsSet() bool
	Raw() json.RawMessage
}

// optionalRaw returns nil for an unset payload so it is left out of the
// request body.
func optionalRaw(p rawPayload) json.RawMessage {
	if !p.IsSet() {
		return nil
	}
	return p.Raw()
}
