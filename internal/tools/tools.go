// Package tools implements the MCP tool handlers for the objective graph.
//
// Each tool is a struct with a Definition for registration and a Handle
// that forwards the call to the dispatcher on behalf of the identity found
// in the request context. Tools never return Go errors: every failure is a
// tool-level error result the assistant can read.
package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/compass/internal/auth"
	"github.com/HendryAvila/compass/internal/dispatch"
)

// Caller runs a named tool call. *dispatch.Dispatcher implements it.
type Caller interface {
	Call(ctx context.Context, tool string, args map[string]any, ident auth.Identity) (*dispatch.Result, error)
}

// Tool is what the server registers.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// All returns every tool in catalog order.
func All(calls Caller) []Tool {
	return []Tool{
		NewGetGraphTool(calls),
		NewReplaceGraphTool(calls),
		NewAddObjectiveTool(calls),
		NewAddDeliverableTool(calls),
		NewUpdateObjectiveTool(calls),
		NewUpdateDeliverableTool(calls),
		NewDeleteItemTool(calls),
		NewLinkItemsTool(calls),
		NewUnlinkItemsTool(calls),
	}
}

// forward resolves the caller's identity and runs the call.
func forward(ctx context.Context, calls Caller, tool string, req mcp.CallToolRequest) *mcp.CallToolResult {
	ident, err := auth.FromContext(ctx)
	if err != nil {
		return dispatch.ErrorResult(err)
	}
	return dispatch.ToolResult(calls.Call(ctx, tool, req.GetArguments(), ident))
}

// newTool builds a definition for a tool that only touches the caller's own
// graph. Destructive tools opt back in with WithDestructiveHintAnnotation.
func newTool(name string, opts ...mcp.ToolOption) mcp.Tool {
	base := []mcp.ToolOption{
		mcp.WithOpenWorldHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
	}
	return mcp.NewTool(name, append(base, opts...)...)
}
