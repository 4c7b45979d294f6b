// Package agentcatalog implements the minimal static collaborator that
// stands in for agent/model CRUD (spec §13 Non-goals): a YAML-declared list
// of agents and the tools they carry, loaded once at startup. It satisfies
// trigger.AgentValidator, task.AgentValidator, workflow.AgentConfigProvider
// and workflow.ToolCatalogProvider without this platform owning any
// agent/tool management API of its own.
package agentcatalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orbitflow/agentcore/internal/workflow"
)

// ToolSpec is one YAML-declared tool entry.
type ToolSpec struct {
	Name                     string         `yaml:"name"`
	Description              string         `yaml:"description"`
	Parameters               map[string]any `yaml:"parameters"`
	ServerInstanceID         string         `yaml:"server_instance_id"`
	RequiresUserConfirmation bool           `yaml:"requires_user_confirmation"`
}

// AgentSpec is one YAML-declared agent entry.
type AgentSpec struct {
	ID           string     `yaml:"id"`
	Name         string     `yaml:"name"`
	ModelID      string     `yaml:"model_id"`
	Instruction  string     `yaml:"instruction"`
	GoalTemplate string     `yaml:"goal_template"`
	Tools        []ToolSpec `yaml:"tools"`
}

type document struct {
	Agents []AgentSpec `yaml:"agents"`
}

// Catalog is an in-memory, read-only view over the loaded agent document.
type Catalog struct {
	agents map[string]AgentSpec
}

// Load reads and parses a YAML catalog file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agentcatalog: read %s: %w", path, err)
	}
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("agentcatalog: parse %s: %w", path, err)
	}
	agents := make(map[string]AgentSpec, len(doc.Agents))
	for _, a := range doc.Agents {
		agents[a.ID] = a
	}
	return &Catalog{agents: agents}, nil
}

// Empty returns a Catalog with no agents, for local dev without a catalog
// file configured — every AgentExists call then returns false.
func Empty() *Catalog {
	return &Catalog{agents: map[string]AgentSpec{}}
}

// AgentExists implements trigger.AgentValidator / task.AgentValidator.
func (c *Catalog) AgentExists(_ context.Context, agentID string) (bool, error) {
	_, ok := c.agents[agentID]
	return ok, nil
}

// BuildAgentConfig implements workflow.AgentConfigProvider.
func (c *Catalog) BuildAgentConfig(_ context.Context, agentID string) (workflow.AgentConfig, error) {
	a, ok := c.agents[agentID]
	if !ok {
		return workflow.AgentConfig{}, fmt.Errorf("agentcatalog: unknown agent %q", agentID)
	}
	return workflow.AgentConfig{
		ID: a.ID, Name: a.Name, ModelID: a.ModelID,
		Instruction: a.Instruction, GoalTemplate: a.GoalTemplate,
	}, nil
}

// DiscoverAvailableTools implements workflow.ToolCatalogProvider.
func (c *Catalog) DiscoverAvailableTools(_ context.Context, agentID string) ([]workflow.ToolSchema, error) {
	a, ok := c.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("agentcatalog: unknown agent %q", agentID)
	}
	tools := make([]workflow.ToolSchema, 0, len(a.Tools))
	for _, t := range a.Tools {
		tools = append(tools, workflow.ToolSchema{
			Name: t.Name, Description: t.Description, Parameters: t.Parameters,
			ServerInstanceID: t.ServerInstanceID, RequiresUserConfirmation: t.RequiresUserConfirmation,
		})
	}
	return tools, nil
}
