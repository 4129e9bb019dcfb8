// Package llm abstracts the language model used for SQL generation.
//
// The pipeline only needs a single completion call, so the interface is
// deliberately small. The OpenAI provider speaks the chat-completions
// protocol and therefore also works against compatible local servers
// (Ollama, vLLM, LM Studio) by pointing BaseURL at them.
package llm

import "context"

// Provider produces a text completion for a prompt.
type Provider interface {
	// Complete sends the prompt and returns the raw model output.
	Complete(ctx context.Context, prompt string) (string, error)

	// Name identifies the provider for logging.
	Name() string
}
