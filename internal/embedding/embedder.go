// Package embedding turns code chunks and queries into dense vectors.
package embedding

import (
	"context"
	"fmt"
)

// Provider names accepted by New.
const (
	ProviderMock   = "mock"
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
)

// Embedder produces unit-length vector embeddings for text. EmbedBatch returns
// one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
	Close() error
}

// embedEach implements EmbedBatch for providers without a batch call.
func embedEach(ctx context.Context, embed func(context.Context, string) ([]float32, error), texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}
