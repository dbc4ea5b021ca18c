package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/relabs-ai/agentchain/types"
)

// agentsFile is the on-disk shape of an agent pipeline definition.
type agentsFile struct {
	Agents []types.AgentSpec `yaml:"agents"`
}

// loadAgents reads and validates an agents file.
func loadAgents(path string) ([]types.AgentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}
	var file agentsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse agents file: %w", err)
	}
	if err := types.ValidateAgents(file.Agents); err != nil {
		return nil, err
	}
	return file.Agents, nil
}
