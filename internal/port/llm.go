package port

import "context"

// LLM represents a chat-completion language model.
type LLM interface {
	// Complete sends a system and a user message and returns the trimmed reply.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
