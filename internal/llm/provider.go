package llm

import "context"

// Provider is a chat completion backend.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name identifies the backend in logs and error messages.
	Name() string
}
