package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHasUsableGraphStoreAndWorkerSettings(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "local", cfg.Mode)
	assert.Equal(t, "neo4j://localhost:7687", cfg.GraphStore.URI)
	assert.Equal(t, 1000, cfg.GraphStore.NodeBatchSize)
	assert.Equal(t, 8, cfg.Workers.PoolSize)
	assert.Contains(t, cfg.LSP.Servers, "python")
	assert.Equal(t, "pylsp", cfg.LSP.Servers["python"].Command)
}

func TestApplyEnvOverridesPrefersEnvVarsOverDefaults(t *testing.T) {
	t.Setenv("NEO4J_URI", "neo4j://override:7687")
	t.Setenv("NEO4J_USERNAME", "custom-user")
	t.Setenv("GRAPH_NODE_BATCH_SIZE", "250")
	t.Setenv("WORKER_POOL_SIZE", "16")
	t.Setenv("BLARGRAPH_MODE", "ci")
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg := Default()
	applyEnvOverrides(cfg)

	assert.Equal(t, "neo4j://override:7687", cfg.GraphStore.URI)
	assert.Equal(t, "custom-user", cfg.GraphStore.Username)
	assert.Equal(t, 250, cfg.GraphStore.NodeBatchSize)
	assert.Equal(t, 16, cfg.Workers.PoolSize)
	assert.Equal(t, "ci", cfg.Mode)
	assert.Equal(t, "sk-from-env", cfg.API.OpenAIKey)
}

func TestApplyEnvOverridesIgnoresUnparsableIntegers(t *testing.T) {
	t.Setenv("GRAPH_NODE_BATCH_SIZE", "not-a-number")

	cfg := Default()
	applyEnvOverrides(cfg)

	assert.Equal(t, 1000, cfg.GraphStore.NodeBatchSize, "malformed override must leave the default in place")
}

func TestLoadReadsExplicitConfigFileAndLayersEnvOnTop(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := "mode: ci\ngraph_store:\n  uri: neo4j://fromfile:7687\n  username: filename\n  database: neo4j\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))

	t.Setenv("NEO4J_USERNAME", "envname")

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "ci", cfg.Mode)
	assert.Equal(t, "neo4j://fromfile:7687", cfg.GraphStore.URI, "file value must survive when no env var overrides it")
	assert.Equal(t, "envname", cfg.GraphStore.Username, "explicit env var must win over the config file")
}

func TestLoadRejectsMissingExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	require.Error(t, err, "an explicitly named but missing file is a real error, unlike the default search path")
	assert.Nil(t, cfg)
}
