package dispatch

import (
	"encoding/json"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/compass/internal/graph"
)

// ─── MCP view ────────────────────────────────────────────────────────────────

// ToolResult renders a call outcome as an MCP tool result. Failures are
// tool-level errors (isError) carrying {"error":{"code","message"}}.
func ToolResult(res *Result, err error) *mcp.CallToolResult {
	if err != nil {
		return ErrorResult(err)
	}
	var payload any = res.Graph
	if res.Entity != nil {
		payload = res.Entity
	}
	data, mErr := json.MarshalIndent(payload, "", "  ")
	if mErr != nil {
		return ErrorResult(mErr)
	}
	return mcp.NewToolResultText(string(data))
}

// ErrorResult renders err as an MCP tool error.
func ErrorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(errorJSON(Classify(err)))
}

func errorJSON(info ErrorInfo) string {
	data, err := json.Marshal(map[string]ErrorInfo{"error": info})
	if err != nil {
		return `{"error":{"code":"internal","message":"internal error"}}`
	}
	return string(data)
}

// ─── HTTP view ───────────────────────────────────────────────────────────────

// Response is the JSON body of the HTTP tool view.
type Response struct {
	Success bool         `json:"success"`
	Data    *graph.Graph `json:"data,omitempty"`
	Created any          `json:"created,omitempty"`
	Updated any          `json:"updated,omitempty"`
	Error   *ErrorInfo   `json:"error,omitempty"`
}

// HTTPResponse renders a call outcome as an HTTP status and body.
func HTTPResponse(res *Result, err error) (int, Response) {
	if err != nil {
		info := Classify(err)
		return info.Status, Response{Error: &info}
	}
	out := Response{Success: true, Data: res.Graph}
	switch res.Tool {
	case ToolAddObjective, ToolAddDeliverable:
		out.Created = res.Entity
	case ToolUpdateObjective, ToolUpdateDeliverable:
		out.Updated = res.Entity
	}
	return http.StatusOK, out
}
