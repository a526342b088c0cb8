package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoleOverride replaces the default texts of one crew role. Empty fields keep the default.
type RoleOverride struct {
	Name    string `yaml:"name"`
	Goal    string `yaml:"goal"`
	Persona string `yaml:"persona"`
}

// RolesFile maps a stage key (plan, research, synthesize) to its override.
type RolesFile struct {
	Roles map[string]RoleOverride `yaml:"roles"`
}

// LoadRoles reads role overrides from a YAML file. An empty path yields no overrides.
func LoadRoles(path string) (map[string]RoleOverride, error) {
	if path == "" {
		return map[string]RoleOverride{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roles file: %w", err)
	}
	var rf RolesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse roles file %s: %w", path, err)
	}
	if rf.Roles == nil {
		rf.Roles = map[string]RoleOverride{}
	}
	return rf.Roles, nil
}
