package embedding

import (
	"context"
	"math"

	"github.com/hyperjump/codelens/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and offline use. Every code
// token of the text is hashed into a few signed buckets, so texts that share
// identifiers get similar vectors and the same text always gets the same embedding.
type MockEmbedder struct {
	dimensions int
	tokenizer  CodeTokenizer
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a unit-length embedding of text's code tokens. Text without any
// tokens maps to a fixed non-zero vector.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	words := e.tokenizer.Split(text)
	if len(words) == 0 {
		for i := range emb {
			emb[i] = 1
		}
	}
	for _, w := range words {
		h := pieceHash(w)
		for k := uint32(0); k < 3; k++ {
			slot := int((h + k*7919) % uint32(e.dimensions))
			emb[slot] += float32(math.Sin(float64(h)*float64(k+1)) + 1.5)
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch embeds texts one at a time.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e.Embed, texts)
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Name identifies the provider in status output.
func (e *MockEmbedder) Name() string {
	return ProviderMock
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
