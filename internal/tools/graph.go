package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/compass/internal/dispatch"
)

// GetGraphTool handles the get_graph MCP tool.
type GetGraphTool struct {
	calls Caller
}

// NewGetGraphTool creates a GetGraphTool.
func NewGetGraphTool(calls Caller) *GetGraphTool {
	return &GetGraphTool{calls: calls}
}

// Definition returns the MCP tool definition for registration.
func (t *GetGraphTool) Definition() mcp.Tool {
	return newTool(dispatch.ToolGetGraph,
		mcp.WithDescription(
			"Return the user's whole goal graph: objectives, deliverables, the "+
				"relationships that explain how each deliverable moves an objective, "+
				"and when the graph last changed. Call this first in every conversation.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

// Handle processes the get_graph tool call.
func (t *GetGraphTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return forward(ctx, t.calls, dispatch.ToolGetGraph, req), nil
}

// ReplaceGraphTool handles the replace_graph MCP tool.
type ReplaceGraphTool struct {
	calls Caller
}

// NewReplaceGraphTool creates a ReplaceGraphTool.
func NewReplaceGraphTool(calls Caller) *ReplaceGraphTool {
	return &ReplaceGraphTool{calls: calls}
}

// Definition returns the MCP tool definition for registration.
func (t *ReplaceGraphTool) Definition() mcp.Tool {
	return newTool(dispatch.ToolReplaceGraph,
		mcp.WithDescription(
			"Overwrite the whole graph with the given document. Use only for imports "+
				"or bulk restructuring; prefer the add/update/delete tools for edits. "+
				"Missing fields are filled with defaults and previously used ids stay retired.",
		),
		mcp.WithObject("data",
			mcp.Required(),
			mcp.Description("Graph document with objectives, deliverables and relationships"),
		),
		mcp.WithDestructiveHintAnnotation(true),
	)
}

// Handle processes the replace_graph tool call.
func (t *ReplaceGraphTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return forward(ctx, t.calls, dispatch.ToolReplaceGraph, req), nil
}
