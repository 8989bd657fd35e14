// Package resources implements MCP resource handlers for the goal graph.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (compass://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/compass/internal/auth"
	"github.com/HendryAvila/compass/internal/dispatch"
	"github.com/HendryAvila/compass/internal/graph"
)

// GraphURI addresses the caller's graph.
const GraphURI = "compass://graph"

// GraphReader loads a caller's graph. *dispatch.Dispatcher implements it.
type GraphReader interface {
	Graph(ctx context.Context, ident auth.Identity) (*graph.Graph, error)
}

// Handler manages resource endpoints.
type Handler struct {
	graphs GraphReader
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(graphs GraphReader) *Handler {
	return &Handler{graphs: graphs}
}

// GraphResource returns the MCP resource definition for the caller's graph.
func (h *Handler) GraphResource() mcp.Resource {
	return mcp.NewResource(
		GraphURI,
		"Goal graph",
		mcp.WithResourceDescription("Your objectives, deliverables and the relationships between them"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleGraph returns the caller's graph as JSON. Failures the caller can act
// on (missing passphrase, wrong key) come back as a text resource; anything
// else is a protocol error.
func (h *Handler) HandleGraph(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	ident, err := auth.FromContext(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err), nil
	}

	g, err := h.graphs.Graph(ctx, ident)
	if err != nil {
		if dispatch.Classify(err).Code == dispatch.CodeInternal {
			return nil, fmt.Errorf("loading graph: %w", err)
		}
		return errorResource(req.Params.URI, err), nil
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling graph: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri string, err error) []mcp.ResourceContents {
	info := dispatch.Classify(err)
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error (%s): %s", info.Code, info.Message),
		},
	}
}
