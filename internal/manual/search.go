package manual

import (
	"context"
	"fmt"

	"github.com/apiaryworks/hivemind/internal/embeddings"
)

// Embedder produces an embedding for a single text. Satisfied by
// *embeddings.Client.
type Embedder interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// Search returns the k chunks most similar to the query, most similar
// first. An empty store yields an empty result, not an error.
func (s *Store) Search(ctx context.Context, embedder Embedder, query string, k int) ([]Chunk, error) {
	chunks, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	queryEmb, err := embedder.Generate(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		vectors[i] = c.Embedding
	}

	indices := embeddings.TopK(queryEmb, vectors, k)
	result := make([]Chunk, 0, len(indices))
	for _, idx := range indices {
		result = append(result, chunks[idx])
	}
	return result, nil
}
