//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errONNXUnavailable = errors.New("onnx embedder needs a cgo build with onnxruntime installed")

// ONNXEmbedder is unavailable without cgo; every method fails.
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails in non-cgo builds.
func NewONNXEmbedder(_ string, _, _, _ int) (*ONNXEmbedder, error) {
	return nil, errONNXUnavailable
}

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errONNXUnavailable
}

func (e *ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errONNXUnavailable
}

func (e *ONNXEmbedder) Dimensions() int   { return 0 }
func (e *ONNXEmbedder) Name() string      { return ProviderONNX }
func (e *ONNXEmbedder) Truncated() uint64 { return 0 }
func (e *ONNXEmbedder) Close() error      { return nil }
