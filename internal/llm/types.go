// Package llm defines the LLM client contract the agent loop consumes
// and provides the OpenAI-compatible HTTP adapter used in production.
// The loop never sees transport details; everything crosses this
// boundary as provider-neutral Go types.
package llm

import "log/slog"

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message is a chat message in provider-neutral form.
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool-result messages
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned call ID, echoed back on the
	// corresponding tool-result message.
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ChatResponse is the unified response from any provider. Wire format
// conversion happens inside the adapters, never in callers.
type ChatResponse struct {
	Model   string
	Message Message

	// Token usage, when the provider reports it.
	InputTokens  int
	OutputTokens int
}
