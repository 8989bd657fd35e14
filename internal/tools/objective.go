package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/compass/internal/dispatch"
)

// objectiveFields are the optional properties shared by add and update.
func objectiveFields() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("description",
			mcp.Description("What reaching this objective looks like"),
		),
		mcp.WithNumber("urgency",
			mcp.Description("How pressing the objective is, 0-100. Defaults to 50."),
			mcp.Min(0),
			mcp.Max(100),
		),
		mcp.WithString("deadline",
			mcp.Description("Target date, ISO format (YYYY-MM-DD)"),
		),
		mcp.WithString("impact",
			mcp.Description("How much it matters. Defaults to 'medium'."),
			mcp.Enum("low", "medium", "high", "critical"),
		),
	}
}

// AddObjectiveTool handles the add_objective MCP tool.
type AddObjectiveTool struct {
	calls Caller
}

// NewAddObjectiveTool creates an AddObjectiveTool.
func NewAddObjectiveTool(calls Caller) *AddObjectiveTool {
	return &AddObjectiveTool{calls: calls}
}

// Definition returns the MCP tool definition for registration.
func (t *AddObjectiveTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Add an objective: a goal the user wants to reach. Returns the created " +
				"objective with its id (obj-N).",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short name of the goal"),
		),
	}
	return newTool(dispatch.ToolAddObjective, append(opts, objectiveFields()...)...)
}

// Handle processes the add_objective tool call.
func (t *AddObjectiveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return forward(ctx, t.calls, dispatch.ToolAddObjective, req), nil
}

// UpdateObjectiveTool handles the update_objective MCP tool.
type UpdateObjectiveTool struct {
	calls Caller
}

// NewUpdateObjectiveTool creates an UpdateObjectiveTool.
func NewUpdateObjectiveTool(calls Caller) *UpdateObjectiveTool {
	return &UpdateObjectiveTool{calls: calls}
}

// Definition returns the MCP tool definition for registration.
func (t *UpdateObjectiveTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Change fields of an existing objective. Only the fields you pass are " +
				"changed; urgency 0 is a valid value.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Objective id, e.g. obj-3"),
		),
		mcp.WithString("title",
			mcp.Description("New title"),
		),
	}
	return newTool(dispatch.ToolUpdateObjective, append(opts, objectiveFields()...)...)
}

// Handle processes the update_objective tool call.
func (t *UpdateObjectiveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return forward(ctx, t.calls, dispatch.ToolUpdateObjective, req), nil
}
