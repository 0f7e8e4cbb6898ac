package mcp

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kansofy/docintel-mcp/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "mcp.db")
	cfg.Embedding.Provider = "local"

	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.storage.Close() })
	return s
}

func TestNewServerComponents(t *testing.T) {
	s := newTestServer(t)

	assert.NotNil(t, s.mcp, "MCP server should be initialized")
	assert.NotNil(t, s.storage, "Storage should be initialized")
	assert.NotNil(t, s.embed, "Embedder should be initialized")
	assert.NotNil(t, s.index, "Index sync should be initialized")
	assert.NotNil(t, s.detector, "Duplicate detector should be initialized")
	assert.NotNil(t, s.pipeline, "Ingest pipeline should be initialized")
	assert.NotNil(t, s.engine, "Query engine should be initialized")
}

func TestNewServerCreatesDatabaseDirectory(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "nested", "dir", "mcp.db")
	cfg.Embedding.Provider = "local"

	s, err := NewServer(cfg)
	require.NoError(t, err)
	defer func() { _ = s.storage.Close() }()

	assert.NotNil(t, s)
}

func TestNewServerNilConfigUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := NewServer(nil)
	require.NoError(t, err)
	defer func() { _ = s.storage.Close() }()

	assert.NotNil(t, s.storage)
}

func TestNewServerScoringPolicyFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "mcp.db")
	cfg.Embedding.Provider = "local"
	cfg.Scoring.FTSWeight = 0.5
	cfg.Scoring.VectorWeight = 0.3
	cfg.Scoring.RecencyWeight = 0.2

	s, err := NewServer(cfg)
	require.NoError(t, err)
	defer func() { _ = s.storage.Close() }()

	policy := s.engine.Policy()
	assert.Equal(t, 0.5, policy.FTSWeight)
	assert.Equal(t, 0.3, policy.VectorWeight)
	assert.Equal(t, 0.2, policy.RecencyWeight)
}
