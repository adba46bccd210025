// Package mcpservice provides the tool layer of the server: typed tool
// declaration, a sealed registry, and the dispatcher that turns a
// tools/call into a bounded text result.
//
// Tools are declared from an argument struct. The struct's json and
// jsonschema tags drive both the advertised input schema and the checks the
// dispatcher runs before the handler sees any data:
//
//	type SearchArgs struct {
//	    Query    string `json:"query" jsonschema_description:"Text to search for"`
//	    PageSize *int   `json:"page_size,omitempty" jsonschema:"minimum=1,maximum=100"`
//	}
//
//	reg := mcpservice.NewRegistry()
//	reg.MustRegister(mcpservice.NewTool("search",
//	    func(ctx context.Context, a SearchArgs) (any, error) {
//	        return client.Search(ctx, a.Query)
//	    },
//	    mcpservice.WithToolDescription("Search the workspace"),
//	))
//	reg.Seal()
//
//	d := mcpservice.NewDispatcher(reg)
//	res := d.Dispatch(ctx, "search", json.RawMessage(`{"query":"roadmap"}`))
//
// Fields typed JSONObject or JSONArray carry serialized JSON. The dispatcher
// parses them after schema validation and reports MalformedPayload when they
// do not parse.
//
// Every failure is classified by ErrorKind and rendered as an IsError result;
// Dispatch itself never fails.
package mcpservice
