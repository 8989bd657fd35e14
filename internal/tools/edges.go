package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/compass/internal/dispatch"
)

// DeleteItemTool handles the delete_item MCP tool.
type DeleteItemTool struct {
	calls Caller
}

// NewDeleteItemTool creates a DeleteItemTool.
func NewDeleteItemTool(calls Caller) *DeleteItemTool {
	return &DeleteItemTool{calls: calls}
}

// Definition returns the MCP tool definition for registration.
func (t *DeleteItemTool) Definition() mcp.Tool {
	return newTool(dispatch.ToolDeleteItem,
		mcp.WithDescription(
			"Delete an objective (obj-N) or deliverable (del-N) and every link and "+
				"relationship that touches it. The other side of each link is kept.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Id of the objective or deliverable to delete"),
		),
		mcp.WithDestructiveHintAnnotation(true),
	)
}

// Handle processes the delete_item tool call.
func (t *DeleteItemTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return forward(ctx, t.calls, dispatch.ToolDeleteItem, req), nil
}

// LinkItemsTool handles the link_items MCP tool.
type LinkItemsTool struct {
	calls Caller
}

// NewLinkItemsTool creates a LinkItemsTool.
func NewLinkItemsTool(calls Caller) *LinkItemsTool {
	return &LinkItemsTool{calls: calls}
}

// Definition returns the MCP tool definition for registration.
func (t *LinkItemsTool) Definition() mcp.Tool {
	return newTool(dispatch.ToolLinkItems,
		mcp.WithDescription(
			"Connect an existing deliverable to another existing objective, for "+
				"actions that serve more than one goal. Linking twice is harmless.",
		),
		mcp.WithString("objectiveId",
			mcp.Required(),
			mcp.Description("Objective id, e.g. obj-1"),
		),
		mcp.WithString("deliverableId",
			mcp.Required(),
			mcp.Description("Deliverable id, e.g. del-4"),
		),
		mcp.WithString("relationship",
			mcp.Description("Why this deliverable moves the objective forward"),
		),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

// Handle processes the link_items tool call.
func (t *LinkItemsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return forward(ctx, t.calls, dispatch.ToolLinkItems, req), nil
}

// UnlinkItemsTool handles the unlink_items MCP tool.
type UnlinkItemsTool struct {
	calls Caller
}

// NewUnlinkItemsTool creates an UnlinkItemsTool.
func NewUnlinkItemsTool(calls Caller) *UnlinkItemsTool {
	return &UnlinkItemsTool{calls: calls}
}

// Definition returns the MCP tool definition for registration.
func (t *UnlinkItemsTool) Definition() mcp.Tool {
	return newTool(dispatch.ToolUnlinkItems,
		mcp.WithDescription(
			"Remove the link between an objective and a deliverable, including the "+
				"relationship text. Both items are kept.",
		),
		mcp.WithString("objectiveId",
			mcp.Required(),
			mcp.Description("Objective id"),
		),
		mcp.WithString("deliverableId",
			mcp.Required(),
			mcp.Description("Deliverable id"),
		),
	)
}

// Handle processes the unlink_items tool call.
func (t *UnlinkItemsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return forward(ctx, t.calls, dispatch.ToolUnlinkItems, req), nil
}
