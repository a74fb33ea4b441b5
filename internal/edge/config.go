package edge

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRules reads route rules from a YAML file. Fields left out of the file
// keep their compiled-in defaults (applied by NewGuard).
func LoadRules(path string) (Rules, error) {
	var rules Rules

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read route rules: %w", err)
	}

	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("failed to parse route rules: %w", err)
	}

	return rules, nil
}
