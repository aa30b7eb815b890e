// Package llm provides the model client interface and implementations.
package llm

import "time"

// Message represents a chat message exchanged with the model.
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool-result messages
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"` // provider-assigned, echoed back for result correlation
	Function ToolFunction `json:"function"`
}

// ToolFunction carries the requested tool name and its arguments in
// neutral map form. Wire formats that encode arguments as a JSON string
// are converted at the provider boundary.
type ToolFunction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ChatResponse is the unified response from any model provider. Fields
// use proper Go types; wire format conversion happens in the provider.
type ChatResponse struct {
	Model     string
	CreatedAt time.Time
	Message   Message

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int
}
