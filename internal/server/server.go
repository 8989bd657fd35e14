// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it takes the dispatcher and hands it to the
// tools, prompts and resources that depend on it. Both transports serve the
// same *server.MCPServer.
package server

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/compass/internal/dispatch"
	"github.com/HendryAvila/compass/internal/prompts"
	"github.com/HendryAvila/compass/internal/resources"
	"github.com/HendryAvila/compass/internal/tools"
)

// Name is the server name announced during initialize.
const Name = "compass"

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, prompts,
// and resources registered.
func New(d *dispatch.Dispatcher) *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register graph tools ---

	for _, t := range tools.All(d) {
		s.AddTool(t.Definition(), t.Handle)
	}

	// --- Register prompts ---

	review := prompts.NewReviewPrompt()
	s.AddPrompt(review.Definition(), review.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(d)
	s.AddResource(resourceHandler.GraphResource(), resourceHandler.HandleGraph)

	return s
}

// serverInstructions returns the system instructions that tell the AI
// how to use Compass effectively.
func serverInstructions() string {
	return `You have access to Compass, a goal graph the user keeps across conversations.

## MODEL

- Objectives (obj-N) are goals: title, description, urgency 0-100, deadline, impact (low|medium|high|critical).
- Deliverables (del-N) are concrete actions: title, description, feasibility 0-100, complexity (low|medium|high), optional available_after and due_before dates.
- A deliverable serves one or more objectives. Each link may carry a relationship text explaining HOW the action moves the goal.

## HOW TO WORK

1. Call get_graph at the start of every conversation before suggesting anything.
2. When the user states a goal, add_objective. When they name an action, add_deliverable under the objective it serves and always fill in relationship.
3. Use link_items when an existing deliverable also serves another objective.
4. Prefer update_objective / update_deliverable for edits. A score of 0 is a real value, not "unset".
5. replace_graph overwrites everything; use it only when the user asks to import or restructure.
6. Ask before delete_item. Deleting an objective keeps its deliverables but drops their links.

## ERRORS

Tool failures come back as {"error":{"code","message"}}:
- invalid_arguments: fix the arguments and retry.
- not_found: call get_graph and use an existing id.
- passphrase_required / invalid_passphrase / decryption_failed: tell the user; do not retry blindly.`
}
