package adapter

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"

	"github.com/openai/openai-go"
)

const (
	// DefaultEmbeddingModel is the model used for agent descriptions and
	// incoming messages unless overridden in config.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultEmbeddingDimension matches text-embedding-3-small output.
	DefaultEmbeddingDimension = 1536
)

// OpenAIEmbedder implements EmbeddingProvider using the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder creates an embedder for the given model. An empty model
// selects DefaultEmbeddingModel.
func NewOpenAIEmbedder(apiKey, model string, dimension int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if dimension <= 0 {
		dimension = DefaultEmbeddingDimension
	}

	return &OpenAIEmbedder{
		client:    openai.NewClient(),
		model:     model,
		dimension: dimension,
	}, nil
}

// Embed generates an embedding for the given text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings API error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai returned no embedding data")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	if len(vec) != e.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), e.dimension)
	}
	return vec, nil
}

// Dimension returns the embedding dimension.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// MockEmbedder returns deterministic unit vectors derived from the text hash.
// Texts sharing words map to nearby vectors only by accident; tests that need
// controlled similarity should use FixedEmbedder instead.
type MockEmbedder struct {
	dimension int
	failWith  error
}

// NewMockEmbedder creates a mock embedder with the given dimension.
func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 8
	}
	return &MockEmbedder{dimension: dimension}
}

// Fail makes every subsequent Embed call return err. Passing nil restores
// normal operation.
func (m *MockEmbedder) Fail(err error) {
	m.failWith = err
}

// Embed generates a deterministic embedding based on the text hash.
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}

	hash := sha256.Sum256([]byte(text))
	vec := make([]float32, m.dimension)
	for i := 0; i < m.dimension; i++ {
		vec[i] = float32(hash[i%len(hash)]) / 255.0
	}
	normalize(vec)
	return vec, nil
}

// Dimension returns the embedding dimension.
func (m *MockEmbedder) Dimension() int {
	return m.dimension
}

// FixedEmbedder maps exact texts to preset vectors, falling back to a zero
// vector for unknown text. Useful for steering similarity in tests.
type FixedEmbedder struct {
	dimension int
	vectors   map[string][]float32
}

// NewFixedEmbedder creates a FixedEmbedder with the given dimension.
func NewFixedEmbedder(dimension int) *FixedEmbedder {
	return &FixedEmbedder{
		dimension: dimension,
		vectors:   make(map[string][]float32),
	}
}

// Set associates text with a vector.
func (f *FixedEmbedder) Set(text string, vec []float32) {
	f.vectors[text] = vec
}

// Embed returns the preset vector for text, or a zero vector.
func (f *FixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return make([]float32, f.dimension), nil
}

// Dimension returns the embedding dimension.
func (f *FixedEmbedder) Dimension() int {
	return f.dimension
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
