// Package prompts implements MCP prompt handlers for the goal graph.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReviewPrompt handles the compass-review MCP prompt.
// It walks the AI through a review of the user's objectives and deliverables.
type ReviewPrompt struct{}

// NewReviewPrompt creates a ReviewPrompt.
func NewReviewPrompt() *ReviewPrompt {
	return &ReviewPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("compass-review",
		mcp.WithPromptDescription(
			"Review your goals with the assistant: what matters most right now, "+
				"which actions move it forward, and what is stale or missing.",
		),
		mcp.WithArgument("focus",
			mcp.ArgumentDescription("Objective id or topic to concentrate on. Default: everything"),
		),
		mcp.WithArgument("horizon",
			mcp.ArgumentDescription("Time window to plan for, e.g. 'this week' or 'this quarter'. Default: this week"),
		),
	)
}

// Handle processes the compass-review prompt request.
func (p *ReviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	focus := argOr(req.Params.Arguments, "focus", "")
	horizon := argOr(req.Params.Arguments, "horizon", "this week")

	scope := "all of my objectives"
	if focus != "" {
		scope = fmt.Sprintf("'%s'", focus)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I want to review %s and plan %s.\n\n", scope, horizon)
	b.WriteString("Please:\n")
	b.WriteString("1. Call `get_graph` and summarize my objectives by urgency and impact\n")
	b.WriteString("2. For each objective in scope, list its deliverables and the relationship explaining how each one helps\n")
	b.WriteString("3. Point out objectives with no deliverables, deliverables with no objective, and dates that have passed\n")
	fmt.Fprintf(&b, "4. Suggest the few deliverables I should focus on %s, favoring high feasibility and low complexity\n", horizon)
	b.WriteString("5. Ask before changing anything; when I agree, use `update_objective`, `update_deliverable`, `add_deliverable`, `link_items` or `delete_item`\n")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Review goals for %s", horizon),
		Messages: []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(b.String())),
		},
	}, nil
}

func argOr(args map[string]string, key, def string) string {
	if v, ok := args[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}
