package embedding

import "fmt"

// Options selects and configures an Embedder.
type Options struct {
	Provider   string
	Dimensions int
	CacheSize  int

	// onnx
	ModelPath string
	MaxTokens int

	// openai
	APIKey        string
	OpenAIModel   string
	OpenAIBaseURL string
}

// New creates the embedder named by opts.Provider. An empty provider selects onnx
// when a model path is set and mock otherwise.
func New(opts Options) (Embedder, error) {
	provider := opts.Provider
	if provider == "" {
		provider = ProviderMock
		if opts.ModelPath != "" {
			provider = ProviderONNX
		}
	}
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", opts.Dimensions)
	}
	switch provider {
	case ProviderMock:
		return NewMockEmbedder(opts.Dimensions), nil
	case ProviderONNX:
		e, err := NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens, opts.CacheSize)
		if err != nil {
			return nil, err
		}
		return e, nil
	case ProviderOpenAI:
		e, err := NewOpenAIEmbedder(opts.APIKey, opts.OpenAIBaseURL, opts.OpenAIModel, opts.Dimensions, opts.CacheSize)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, onnx, openai)", provider)
	}
}
