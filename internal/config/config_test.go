package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/docs.db
chunking:
  size: 256
  overlap: 32
embedding:
  provider: local
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/docs.db", cfg.Database.Path)
	assert.Equal(t, 256, cfg.Chunking.Size)
	assert.Equal(t, 32, cfg.Chunking.Overlap)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	// Untouched sections keep defaults.
	assert.Equal(t, 0.4, cfg.Scoring.FTSWeight)
	assert.Equal(t, 0.98, cfg.Dedup.LikelyThreshold)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("DOCINTEL_DB_PATH", "/env/override.db")
	t.Setenv("DOCINTEL_CHUNK_SIZE", "128")
	t.Setenv("DOCINTEL_CHUNK_OVERLAP", "16")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/override.db", cfg.Database.Path)
	assert.Equal(t, 128, cfg.Chunking.Size)
	assert.Equal(t, 16, cfg.Chunking.Overlap)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestValidateRejectsBadGeometry(t *testing.T) {
	cfg := Default()
	cfg.Chunking.Overlap = cfg.Chunking.Size
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := Default()
	cfg.Scoring.FTSWeight = 0.9
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}
