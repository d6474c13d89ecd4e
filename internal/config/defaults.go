package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir is used when neither the config nor CODELENS_DATA_DIR names one.
const DefaultDataDir = "/usr/local/var/codelens/data"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeoutSeconds == 0 {
		cfg.Server.RequestTimeoutSeconds = 60
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 256
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = defaultDataDir()
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = filepath.Join(cfg.Storage.DataDir, "db", "codelens.db")
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = filepath.Join(cfg.Storage.DataDir, "indices", "bleve")
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = filepath.Join(cfg.Storage.DataDir, "indices", "vectors")
	}
	if cfg.Storage.WorkspacePath == "" {
		cfg.Storage.WorkspacePath = filepath.Join(cfg.Storage.DataDir, "workspace")
	}
	if cfg.Embedding.Provider == "" {
		if cfg.Embedding.ModelPath != "" {
			cfg.Embedding.Provider = "onnx"
		} else {
			cfg.Embedding.Provider = "mock"
		}
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if !cfg.Search.DefaultKeywordEnabled && !cfg.Search.DefaultSemanticEnabled {
		cfg.Search.DefaultKeywordEnabled = true
		cfg.Search.DefaultSemanticEnabled = true
	}
	if cfg.Search.TopKCandidates == 0 {
		cfg.Search.TopKCandidates = 100
	}
	if cfg.Search.DefaultKeywordWeight == 0 && cfg.Search.DefaultSemanticWeight == 0 {
		cfg.Search.DefaultKeywordWeight = 0.3
		cfg.Search.DefaultSemanticWeight = 0.7
	}
	if cfg.Search.MemberNameBoost == 0 {
		cfg.Search.MemberNameBoost = 2.0
	}
	if cfg.Search.SnippetLength == 0 {
		cfg.Search.SnippetLength = 240
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Index.Extensions == nil {
		cfg.Index.Extensions = []string{".java"}
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".codelens")
	}
	return DefaultDataDir
}
