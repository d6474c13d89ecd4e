// Package config provides configuration loading and structs for the codelens server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables applied after the config file.
const (
	EnvDebug   = "CODELENS_DEBUG"
	EnvDataDir = "CODELENS_DATA_DIR"
	EnvAPIKey  = "OPENAI_API_KEY"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Index     IndexConfig     `yaml:"index"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RequestTimeoutSeconds bounds every request except uploads.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	// MaxUploadMB caps multipart archive uploads.
	MaxUploadMB int64 `yaml:"max_upload_mb"`
}

// StorageConfig holds paths for the database and indices.
// Empty paths are derived from DataDir.
type StorageConfig struct {
	DataDir         string `yaml:"data_dir"`
	DatabasePath    string `yaml:"database_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
	WorkspacePath   string `yaml:"workspace_path"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider      string `yaml:"provider"`
	ModelPath     string `yaml:"model_path"`
	Dimensions    int    `yaml:"dimensions"`
	MaxTokens     int    `yaml:"max_tokens"`
	CacheSize     int    `yaml:"cache_size"`
	BatchSize     int    `yaml:"batch_size"`
	OpenAIModel   string `yaml:"openai_model"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	// APIKey is read from OPENAI_API_KEY, never from the file.
	APIKey string `yaml:"-"`
}

// SearchConfig holds search and fusion settings.
type SearchConfig struct {
	DefaultLimit           int     `yaml:"default_limit"`
	MaxLimit               int     `yaml:"max_limit"`
	DefaultKeywordEnabled  bool    `yaml:"default_keyword_enabled"`
	DefaultSemanticEnabled bool    `yaml:"default_semantic_enabled"`
	TopKCandidates         int     `yaml:"top_k_candidates"`
	DefaultKeywordWeight   float64 `yaml:"default_keyword_weight"`
	DefaultSemanticWeight  float64 `yaml:"default_semantic_weight"`
	MemberNameBoost        float64 `yaml:"member_name_boost"`
	FuzzyEnabled           bool    `yaml:"fuzzy_enabled"`
	SnippetLength          int     `yaml:"snippet_length"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	// Type is "memory" or "faiss".
	Type       string   `yaml:"type"`
	Extensions []string `yaml:"extensions"`
}

// WatchConfig holds repository watch settings.
type WatchConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Directories []string `yaml:"directories"`
	DebounceMS  int      `yaml:"debounce_ms"`
}

// Load reads .env files, parses the config file at path, expands paths, applies
// defaults and environment overrides. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.WorkspacePath = expandPath(cfg.Storage.WorkspacePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with only defaults and environment overrides applied,
// for running without a config file.
func Default() (*Config, error) {
	if err := loadDotEnv("."); err != nil {
		return nil, err
	}
	var cfg Config
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	if cfg.Storage.DataDir != "" {
		abs, err := filepath.Abs(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("absolute data dir: %w", err)
		}
		cfg.Storage.DataDir = abs
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// loadDotEnv loads .env from dir and the working directory. Variables already set win.
// A .env file that exists but cannot be parsed is an error.
func loadDotEnv(dir string) error {
	candidates := []string{filepath.Join(dir, ".env")}
	if dir != "." {
		candidates = append(candidates, ".env")
	}
	for _, f := range candidates {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with CODELENS_* variables and reads the OpenAI key.
func ApplyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvDebug); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDebug, err)
		}
		cfg.Debug = b
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.Embedding.APIKey = v
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
