package embedding

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"document-intel/internal/models"
)

const DefaultBatchSize = 100

// Embedder is the slice of the LLM provider the batch client needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// BatchClient wraps the external embedding service with fixed-size
// batching. Batches are issued sequentially to respect the backend's
// rate limits; within a batch the call is a single blocking request
// whose result order matches input order.
type BatchClient struct {
	provider  Embedder
	batchSize int
}

func NewBatchClient(provider Embedder, batchSize int) *BatchClient {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchClient{provider: provider, batchSize: batchSize}
}

// EmbedTexts returns one vector per input text, aligned by index so
// embeddings re-align with chunk ordinals.
func (b *BatchClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := b.provider.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: batch %d-%d returned %d vectors", models.ErrEmbeddingService, start, end, len(batch))
		}
		vectors = append(vectors, batch...)
	}

	log.Debug().Int("texts", len(texts)).Int("batch_size", b.batchSize).Msg("Generated embeddings")
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (b *BatchClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", models.ErrEmbeddingService, len(vectors))
	}
	return vectors[0], nil
}
