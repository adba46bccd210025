package notiontools

import "github.com/ggoodman/notion-mcp-go/mcpservice"

// Argument structs, one per tool. Tags drive the advertised schema and the
// dispatcher's structural checks.

type SearchArgs struct {
	Query    string `json:"query" jsonschema_description:"Text to search for in page and database titles"`
	Filter   string `json:"filter,omitempty" jsonschema:"enum=page,enum=database" jsonschema_description:"Restrict results to pages or databases"`
	PageSize *int   `json:"page_size,omitempty" jsonschema:"minimum=1,maximum=100" jsonschema_description:"Maximum number of results (default 20)"`
}

type GetPageArgs struct {
	PageID string `json:"page_id" jsonschema_description:"ID of the page"`
}

type CreatePageArgs struct {
	ParentType string                `json:"parent_type" jsonschema:"enum=database_id,enum=page_id" jsonschema_description:"Kind of parent: database_id or page_id"`
	ParentID   string                `json:"parent_id" jsonschema_description:"ID of the parent database or page"`
	Properties mcpservice.JSONObject `json:"properties" jsonschema_description:"Page properties as a JSON object string"`
	Children   mcpservice.JSONArray  `json:"children,omitempty" jsonschema_description:"Content blocks as a JSON array string"`
	Icon       string                `json:"icon,omitempty" jsonschema_description:"Emoji icon"`
}

type UpdatePageArgs struct {
	PageID     string                `json:"page_id" jsonschema_description:"ID of the page"`
	Properties mcpservice.JSONObject `json:"properties" jsonschema_description:"Properties to update as a JSON object string"`
	Archived   *bool                 `json:"archived,omitempty" jsonschema_description:"Archive (true) or restore (false) the page"`
	Icon       string                `json:"icon,omitempty" jsonschema_description:"Emoji icon"`
}

type GetDatabaseArgs struct {
	DatabaseID string `json:"database_id" jsonschema_description:"ID of the database"`
}

type QueryDatabaseArgs struct {
	DatabaseID  string                `json:"database_id" jsonschema_description:"ID of the database"`
	Filter      mcpservice.JSONObject `json:"filter,omitempty" jsonschema_description:"Notion filter as a JSON object string"`
	Sorts       mcpservice.JSONArray  `json:"sorts,omitempty" jsonschema_description:"Notion sorts as a JSON array string"`
	PageSize    *int                  `json:"page_size,omitempty" jsonschema:"minimum=1,maximum=100" jsonschema_description:"Maximum number of results (default 50)"`
	StartCursor string                `json:"start_cursor,omitempty" jsonschema_description:"Cursor returned by a previous query"`
}

type CreateDatabaseArgs struct {
	ParentPageID string                `json:"parent_page_id" jsonschema_description:"ID of the parent page"`
	Title        string                `json:"title" jsonschema_description:"Database title"`
	Properties   mcpservice.JSONObject `json:"properties" jsonschema_description:"Property schema as a JSON object string"`
	Icon         string                `json:"icon,omitempty" jsonschema_description:"Emoji icon"`
}

type UpdateDatabaseArgs struct {
	DatabaseID string                `json:"database_id" jsonschema_description:"ID of the database"`
	Title      string                `json:"title,omitempty" jsonschema_description:"New title"`
	Properties mcpservice.JSONObject `json:"properties,omitempty" jsonschema_description:"Property schema changes as a JSON object string"`
}

type GetBlockChildrenArgs struct {
	BlockID     string `json:"block_id" jsonschema_description:"ID of the block or page"`
	PageSize    *int   `json:"page_size,omitempty" jsonschema:"minimum=1,maximum=100" jsonschema_description:"Maximum number of blocks (default 100)"`
	StartCursor string `json:"start_cursor,omitempty" jsonschema_description:"Cursor returned by a previous call"`
}

type AppendBlocksArgs struct {
	BlockID  string               `json:"block_id" jsonschema_description:"ID of the parent block or page"`
	Children mcpservice.JSONArray `json:"children" jsonschema_description:"Blocks to append as a JSON array string"`
}

type UpdateBlockArgs struct {
	BlockID   string                `json:"block_id" jsonschema_description:"ID of the block"`
	BlockData mcpservice.JSONObject `json:"block_data" jsonschema_description:"Block type payload as a JSON object string"`
	Archived  *bool                 `json:"archived,omitempty" jsonschema_description:"Archive (true) or restore (false) the block"`
}

type DeleteBlockArgs struct {
	BlockID string `json:"block_id" jsonschema_description:"ID of the block"`
}

type ListCommentsArgs struct {
	BlockID     string `json:"block_id" jsonschema_description:"ID of the page or block"`
	PageSize    *int   `json:"page_size,omitempty" jsonschema:"minimum=1,maximum=100" jsonschema_description:"Maximum number of comments (default 50)"`
	StartCursor string `json:"start_cursor,omitempty" jsonschema_description:"Cursor returned by a previous call"`
}

type AddCommentArgs struct {
	ParentType string `json:"parent_type" jsonschema:"enum=page_id,enum=discussion_id" jsonschema_description:"Comment on a page or reply to a discussion"`
	ParentID   string `json:"parent_id" jsonschema_description:"ID of the page or discussion"`
	Text       string `json:"text" jsonschema_description:"Comment text"`
}

type ListUsersArgs struct{}

type GetUserArgs struct {
	UserID string `json:"user_id" jsonschema_description:"ID of the user"`
}

func pageSizeOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
