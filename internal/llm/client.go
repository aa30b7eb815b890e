package llm

import "context"

// Client is the interface that all model providers must implement.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	// tools carries the tool definitions the model may invoke, in the
	// JSON-schema form produced by the tool registry.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error)

	// Ping checks if the provider is reachable and the credential works.
	Ping(ctx context.Context) error
}
