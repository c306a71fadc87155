package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `# tracker settings
NOTION_API_KEY=secret-key
export NOTION_DATABASE_ID="db-1"

DRAFT_MODEL_PRIMARY='deepseek/deepseek-chat'
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("NOTION_API_KEY", "")
	t.Setenv("NOTION_DATABASE_ID", "")
	require.NoError(t, LoadEnvFile(path))

	assert.Equal(t, "secret-key", os.Getenv("NOTION_API_KEY"))
	assert.Equal(t, "db-1", os.Getenv("NOTION_DATABASE_ID"))
	assert.Equal(t, "deepseek/deepseek-chat", os.Getenv("DRAFT_MODEL_PRIMARY"))
}

func TestLoadEnvFileRejectsBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("not a pair\n"), 0644))
	assert.Error(t, LoadEnvFile(path))
}

func TestBuildPipelineRequiresTracker(t *testing.T) {
	_, err := Config{OpenRouterAPIKey: "key"}.BuildPipeline()
	assert.ErrorContains(t, err, "NOTION_API_KEY")
}

func TestBuildPipelineRequiresModels(t *testing.T) {
	_, err := Config{NotionAPIKey: "k", NotionDatabaseID: "db"}.BuildPipeline()
	assert.ErrorContains(t, err, "OPENROUTER_API_KEY")
}

func TestBuildPipelineOptionalCollaborators(t *testing.T) {
	cfg := Config{
		NotionAPIKey:     "k",
		NotionDatabaseID: "db",
		OpenRouterAPIKey: "or-key",
		PrimaryModel:     "deepseek/deepseek-chat",
		FallbackModel:    "google/gemma-3-27b-it",
		RepairModel:      "qwen/qwen3-4b",
	}

	p, err := cfg.BuildPipeline()
	require.NoError(t, err)
	assert.NotNil(t, p.Records)
	assert.NotNil(t, p.Generator)
	assert.NotNil(t, p.Templates)
	assert.Nil(t, p.Folders)
	assert.Nil(t, p.Documents)
	assert.Nil(t, p.Research)
	assert.Nil(t, p.Trace)

	cfg.DriveToken = "tok"
	cfg.RootComplaints = "root-d"
	cfg.PerplexityPrimaryKey = "pk"
	cfg.TraceDir = t.TempDir()

	p, err = cfg.BuildPipeline()
	require.NoError(t, err)
	assert.NotNil(t, p.Folders)
	assert.NotNil(t, p.Documents)
	assert.NotNil(t, p.Research)
	assert.NotNil(t, p.Trace)
}
