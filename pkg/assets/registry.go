// Package assets holds the static registry of assets the relayer is willing
// to move, loaded from a YAML file at startup.
package assets

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

// Asset describes one entry of the registry
type Asset struct {
	ID           string       `yaml:"id"`
	Chain        intent.Chain `yaml:"chain"`
	Symbol       string       `yaml:"symbol"`
	Decimals     int          `yaml:"decimals"`
	Intermediate string       `yaml:"intermediate,omitempty"`
}

type registryFile struct {
	Assets []Asset `yaml:"assets"`
}

// Registry is an immutable lookup of known assets
type Registry struct {
	byID map[string]Asset
}

// Load reads and parses a registry file
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset registry: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from raw YAML
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse asset registry: %w", err)
	}

	byID := make(map[string]Asset, len(file.Assets))
	for _, a := range file.Assets {
		if a.ID == "" {
			return nil, fmt.Errorf("asset registry entry missing id")
		}
		if !a.Chain.Valid() {
			return nil, fmt.Errorf("asset %s: unsupported chain %q", a.ID, a.Chain)
		}
		if _, dup := byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate asset id %s", a.ID)
		}
		byID[a.ID] = a
	}

	return &Registry{byID: byID}, nil
}

// Get returns the asset for an id
func (r *Registry) Get(id string) (Asset, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// Known reports whether the id is registered
func (r *Registry) Known(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// DefaultIntermediate returns the configured routing asset for id, or the
// empty string when the asset has none.
func (r *Registry) DefaultIntermediate(id string) string {
	if a, ok := r.byID[id]; ok {
		return a.Intermediate
	}
	return ""
}

// Len returns the number of registered assets
func (r *Registry) Len() int {
	return len(r.byID)
}
