// Convenience wrappers over the metadata and query tools exposed by the
// federated data service. Each returns the tool's CSV text output.

package mcp

import "context"

// GetCatalogs lists the available catalogs.
func (c *Client) GetCatalogs(ctx context.Context) (string, error) {
	return c.CallTool(ctx, "getCatalogs", map[string]any{})
}

// GetSchemas lists the schemas in a catalog.
func (c *Client) GetSchemas(ctx context.Context, catalogName string) (string, error) {
	return c.CallTool(ctx, "getSchemas", map[string]any{
		"catalogName": catalogName,
	})
}

// GetTables lists the tables in a schema.
func (c *Client) GetTables(ctx context.Context, catalogName, schemaName string) (string, error) {
	return c.CallTool(ctx, "getTables", map[string]any{
		"catalogName": catalogName,
		"schemaName":  schemaName,
	})
}

// GetColumns lists the columns of a table.
func (c *Client) GetColumns(ctx context.Context, catalogName, schemaName, tableName string) (string, error) {
	return c.CallTool(ctx, "getColumns", map[string]any{
		"catalogName": catalogName,
		"schemaName":  schemaName,
		"tableName":   tableName,
	})
}

// QueryData executes a SQL query, optionally with named parameters.
func (c *Client) QueryData(ctx context.Context, query string, parameters map[string]any) (string, error) {
	input := map[string]any{"query": query}
	if len(parameters) > 0 {
		input["parameters"] = parameters
	}
	return c.CallTool(ctx, "queryData", input)
}
