package port

import "context"

// ChatProvider abstracts the LLM backend used for titles, tags, expansions,
// summaries and idea chat. Implementations can target OpenRouter, OpenAI,
// or any compatible chat-completions API.
type ChatProvider interface {
	// ModelName returns the identifier of the model being used.
	ModelName() string

	// Chat sends a system prompt plus user prompt and returns the response.
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// EmbeddingProvider turns text into a fixed-length vector.
//
// Raw provider clients return an error on failure (429 surfaces as
// ErrRateLimited). The fallback adapter composed from them never returns an
// error for operational failures: an empty vector is the sentinel for
// "embedding unavailable", so semantic search degrades instead of breaking
// the request path.
type EmbeddingProvider interface {
	// Name identifies the provider for logging.
	Name() string

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	// A failed batch yields no partial results, keeping input and output
	// indices aligned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
