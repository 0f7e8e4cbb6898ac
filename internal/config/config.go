// Package config loads server configuration from an optional YAML file with
// environment variable overrides. A .env file in the working directory is
// honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

// Config is the full server configuration.
type Config struct {
	Database  Database  `yaml:"database"`
	Chunking  Chunking  `yaml:"chunking"`
	Embedding Embedding `yaml:"embedding"`
	Scoring   Scoring   `yaml:"scoring"`
	Dedup     Dedup     `yaml:"dedup"`
}

// Database configures the SQLite store.
type Database struct {
	Path string `yaml:"path"`
}

// Chunking configures span geometry.
type Chunking struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// Embedding configures the embedding provider.
type Embedding struct {
	// Provider selects the backend: "local", "jina", or "openai".
	// Empty defers to API-key auto-detection.
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	ModelPath string `yaml:"model_path"`
	BatchSize int    `yaml:"batch_size"`
	CacheSize int    `yaml:"cache_size"`
}

// Scoring configures hybrid search fusion weights.
type Scoring struct {
	FTSWeight      float64 `yaml:"fts_weight"`
	VectorWeight   float64 `yaml:"vector_weight"`
	RecencyWeight  float64 `yaml:"recency_weight"`
	RecencyCutoffD int     `yaml:"recency_cutoff_days"`
}

// Dedup configures near-duplicate classification thresholds.
type Dedup struct {
	LikelyThreshold   float64 `yaml:"likely_threshold"`
	PossibleThreshold float64 `yaml:"possible_threshold"`
}

// Default returns the configuration used when no file or overrides are given.
func Default() *Config {
	return &Config{
		Database: Database{Path: "docintel.db"},
		Chunking: Chunking{Size: 512, Overlap: 50},
		Embedding: Embedding{
			Model:     "all-MiniLM-L6-v2",
			BatchSize: 32,
			CacheSize: 1000,
		},
		Scoring: Scoring{
			FTSWeight:      0.4,
			VectorWeight:   0.4,
			RecencyWeight:  0.2,
			RecencyCutoffD: 30,
		},
		Dedup: Dedup{
			LikelyThreshold:   0.98,
			PossibleThreshold: 0.90,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// non-empty), then environment overrides. A .env file is loaded first when
// present; missing .env is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read config %s: %v", types.ErrConfiguration, path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config %s: %v", types.ErrConfiguration, path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DOCINTEL_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("DOCINTEL_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("DOCINTEL_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("DOCINTEL_MODEL_PATH"); v != "" {
		cfg.Embedding.ModelPath = v
	}
	if v := os.Getenv("DOCINTEL_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.Size = n
		}
	}
	if v := os.Getenv("DOCINTEL_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.Overlap = n
		}
	}
}

// Validate checks cross-field constraints that YAML parsing cannot express.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is required", types.ErrConfiguration)
	}
	if c.Chunking.Size <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("%w: invalid chunk geometry size=%d overlap=%d",
			types.ErrConfiguration, c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("%w: embedding batch size must be positive", types.ErrConfiguration)
	}
	sum := c.Scoring.FTSWeight + c.Scoring.VectorWeight + c.Scoring.RecencyWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("%w: scoring weights must sum to 1.0, got %.3f", types.ErrConfiguration, sum)
	}
	if c.Dedup.PossibleThreshold > c.Dedup.LikelyThreshold {
		return fmt.Errorf("%w: possible_threshold %.2f exceeds likely_threshold %.2f",
			types.ErrConfiguration, c.Dedup.PossibleThreshold, c.Dedup.LikelyThreshold)
	}
	return nil
}
