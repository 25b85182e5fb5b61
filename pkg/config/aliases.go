package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultAliases returns the built-in model aliases.
func DefaultAliases() map[string]string {
	return map[string]string{
		"fast":    "gpt-4o-mini",
		"quality": "claude-sonnet-4-20250514",
		"deep":    "claude-opus-4-20250514",
		"flash":   "gemini-2.0-flash",
		"cheap":   "deepseek-chat",
		"reason":  "deepseek-reasoner",
		"local":   "llama3",
	}
}

// LoadAliases reads a YAML file with a top-level aliases map and merges it
// over the current aliases.
func (c *Config) LoadAliases(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read aliases %s: %w", path, err)
	}
	var file struct {
		Aliases map[string]string `yaml:"aliases"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse aliases %s: %w", path, err)
	}
	if c.Aliases == nil {
		c.Aliases = make(map[string]string, len(file.Aliases))
	}
	for alias, model := range file.Aliases {
		c.Aliases[alias] = model
	}
	return nil
}

// AliasNames returns the sorted alias names.
func (c *Config) AliasNames() []string {
	names := make([]string, 0, len(c.Aliases))
	for name := range c.Aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
