package llm

import "context"

// Client is the interface every LLM provider adapter implements. The
// agent loop holds a Client and does not know or care whether it is
// backed by HTTP, an SDK, or a test double.
type Client interface {
	// Chat sends one chat-completion request. tools carries the wire
	// format tool definitions (from tools.Registry.List); pass nil to
	// disable tool calling for the request.
	Chat(ctx context.Context, messages []Message, tools []map[string]any) (*ChatResponse, error)
}
