package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/compass/internal/dispatch"
)

func deliverableFields() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("description",
			mcp.Description("What has to be done"),
		),
		mcp.WithNumber("feasibility",
			mcp.Description("How achievable it is right now, 0-100. Defaults to 50."),
			mcp.Min(0),
			mcp.Max(100),
		),
		mcp.WithString("complexity",
			mcp.Description("Effort involved. Defaults to 'medium'."),
			mcp.Enum("low", "medium", "high"),
		),
		mcp.WithString("available_after",
			mcp.Description("Earliest date work can start, ISO format"),
		),
		mcp.WithString("due_before",
			mcp.Description("Date it must be done by, ISO format"),
		),
	}
}

// AddDeliverableTool handles the add_deliverable MCP tool.
type AddDeliverableTool struct {
	calls Caller
}

// NewAddDeliverableTool creates an AddDeliverableTool.
func NewAddDeliverableTool(calls Caller) *AddDeliverableTool {
	return &AddDeliverableTool{calls: calls}
}

// Definition returns the MCP tool definition for registration.
func (t *AddDeliverableTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Add a deliverable: a concrete action that advances an objective. It is " +
				"linked to the given objective, and the relationship text explains how.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short name of the action"),
		),
		mcp.WithString("objectiveId",
			mcp.Required(),
			mcp.Description("Objective this deliverable serves, e.g. obj-1"),
		),
		mcp.WithString("relationship",
			mcp.Description("Why doing this moves the objective forward"),
		),
	}
	return newTool(dispatch.ToolAddDeliverable, append(opts, deliverableFields()...)...)
}

// Handle processes the add_deliverable tool call.
func (t *AddDeliverableTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return forward(ctx, t.calls, dispatch.ToolAddDeliverable, req), nil
}

// UpdateDeliverableTool handles the update_deliverable MCP tool.
type UpdateDeliverableTool struct {
	calls Caller
}

// NewUpdateDeliverableTool creates an UpdateDeliverableTool.
func NewUpdateDeliverableTool(calls Caller) *UpdateDeliverableTool {
	return &UpdateDeliverableTool{calls: calls}
}

// Definition returns the MCP tool definition for registration.
func (t *UpdateDeliverableTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Change fields of an existing deliverable. Only the fields you pass are " +
				"changed; feasibility 0 is a valid value.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Deliverable id, e.g. del-2"),
		),
		mcp.WithString("title",
			mcp.Description("New title"),
		),
	}
	return newTool(dispatch.ToolUpdateDeliverable, append(opts, deliverableFields()...)...)
}

// Handle processes the update_deliverable tool call.
func (t *UpdateDeliverableTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return forward(ctx, t.calls, dispatch.ToolUpdateDeliverable, req), nil
}
