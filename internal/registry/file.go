package registry

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadFile reads a registry table from a YAML, JSON or TOML file with a top-level
// "networks" list.
func LoadFile(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var entries []NetworkEntry
	if err := v.UnmarshalKey("networks", &entries); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("registry %s has no networks", path)
	}

	return New(entries)
}
