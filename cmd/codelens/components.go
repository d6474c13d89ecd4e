package main

import (
	"fmt"

	"github.com/hyperjump/codelens/internal/config"
	"github.com/hyperjump/codelens/internal/embedding"
	"github.com/hyperjump/codelens/internal/indexer"
	"github.com/hyperjump/codelens/internal/keyword"
	"github.com/hyperjump/codelens/internal/search"
	"github.com/hyperjump/codelens/internal/storage"
	"github.com/hyperjump/codelens/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	Vectors      *vector.Registry
	KeywordIndex keyword.KeywordIndex
	Engine       *search.Engine
	Indexer      *indexer.Indexer
}

// Close releases every component in reverse order of creation.
func (c *Components) Close() {
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Vectors != nil {
		_ = c.Vectors.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	comps := &Components{}
	ready := false
	defer func() {
		if !ready {
			comps.Close()
		}
	}()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	comps.Storage = store

	embedder, err := embedding.New(embedding.Options{
		Provider:      cfg.Embedding.Provider,
		Dimensions:    cfg.Embedding.Dimensions,
		CacheSize:     cfg.Embedding.CacheSize,
		ModelPath:     cfg.Embedding.ModelPath,
		MaxTokens:     cfg.Embedding.MaxTokens,
		APIKey:        cfg.Embedding.APIKey,
		OpenAIModel:   cfg.Embedding.OpenAIModel,
		OpenAIBaseURL: cfg.Embedding.OpenAIBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	comps.Embedder = embedder
	logger.Info("embedder initialized",
		zap.String("provider", comps.Embedder.Name()),
		zap.Int("dimensions", comps.Embedder.Dimensions()))

	indexType := cfg.Index.Type
	if indexType == string(vector.IndexTypeFAISS) && !vector.IsFAISSAvailable() {
		logger.Warn("faiss not available in this build, falling back to memory index")
		indexType = string(vector.IndexTypeMemory)
	}
	vectors, err := vector.NewRegistry(
		cfg.Storage.VectorIndexPath,
		indexType,
		comps.Embedder.Dimensions(),
		vector.WithRegistryLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	comps.Vectors = vectors
	logger.Info("vector index initialized",
		zap.String("type", indexType),
		zap.String("path", cfg.Storage.VectorIndexPath),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	kwIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	comps.KeywordIndex = kwIndex

	comps.Engine = search.NewEngine(comps.Storage, comps.Embedder, comps.Vectors, comps.KeywordIndex,
		&cfg.Search, search.WithLogger(logger))
	comps.Indexer = indexer.NewIndexer(comps.Storage, comps.Embedder, comps.Vectors, comps.KeywordIndex,
		cfg, indexer.WithLogger(logger))
	ready = true
	return comps, nil
}
