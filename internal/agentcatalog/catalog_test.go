package agentcatalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
agents:
  - id: support-agent
    name: Support Agent
    model_id: claude-3-5-sonnet
    instruction: Help the customer.
    goal_template: "Resolve: {{.description}}"
    tools:
      - name: search_docs
        description: Search the knowledge base
        server_instance_id: docs-mcp
        requires_user_confirmation: false
`

func writeCatalog(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("indexes_agents_by_id", func(t *testing.T) {
		c, err := Load(writeCatalog(t, sampleYAML))
		require.NoError(t, err)

		exists, err := c.AgentExists(context.Background(), "support-agent")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("errors_on_a_missing_file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("errors_on_malformed_yaml", func(t *testing.T) {
		_, err := Load(writeCatalog(t, "agents: [this is not valid"))
		assert.Error(t, err)
	})
}

func TestEmptyCatalog(t *testing.T) {
	c := Empty()
	exists, err := c.AgentExists(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBuildAgentConfig(t *testing.T) {
	c, err := Load(writeCatalog(t, sampleYAML))
	require.NoError(t, err)

	t.Run("builds_config_for_a_known_agent", func(t *testing.T) {
		cfg, err := c.BuildAgentConfig(context.Background(), "support-agent")
		require.NoError(t, err)
		assert.Equal(t, "claude-3-5-sonnet", cfg.ModelID)
		assert.Equal(t, "Help the customer.", cfg.Instruction)
	})

	t.Run("errors_for_an_unknown_agent", func(t *testing.T) {
		_, err := c.BuildAgentConfig(context.Background(), "ghost-agent")
		assert.Error(t, err)
	})
}

func TestDiscoverAvailableTools(t *testing.T) {
	c, err := Load(writeCatalog(t, sampleYAML))
	require.NoError(t, err)

	t.Run("lists_the_declared_tools", func(t *testing.T) {
		tools, err := c.DiscoverAvailableTools(context.Background(), "support-agent")
		require.NoError(t, err)
		require.Len(t, tools, 1)
		assert.Equal(t, "search_docs", tools[0].Name)
		assert.Equal(t, "docs-mcp", tools[0].ServerInstanceID)
	})

	t.Run("errors_for_an_unknown_agent", func(t *testing.T) {
		_, err := c.DiscoverAvailableTools(context.Background(), "ghost-agent")
		assert.Error(t, err)
	})
}
