package adapter

import (
	"context"
)

// maxReplyTokens caps every completion request. The only prompt this system
// sends is the tier-3 classification, and its valid replies are a single
// agent name or "none"; anything longer is already unparseable.
const maxReplyTokens = 64

// Adapter defines the interface for LLM provider adapters.
// The router only ever sends the tier-3 classification prompt through this
// interface; it never forwards conversation history.
type Adapter interface {
	// Generate sends a prompt to the model and returns the response.
	Generate(ctx context.Context, model string, prompt string) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// EmbeddingProvider turns text into a fixed-dimensionality vector.
// Agent descriptions and incoming messages must be embedded by the same
// provider; cosine similarity across mismatched embedding spaces is
// meaningless.
type EmbeddingProvider interface {
	// Embed generates an embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension.
	Dimension() int
}
