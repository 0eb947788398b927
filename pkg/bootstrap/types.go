// Package bootstrap loads the sample order data used to seed the order store.
package bootstrap

// SeedConfig is the root of a seed file. Orders are open-schema documents
// stored as-is; key names may vary between entries.
type SeedConfig struct {
	Name        string           `yaml:"name" json:"name"`
	Version     string           `yaml:"version" json:"version"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Orders      []map[string]any `yaml:"orders" json:"orders"`
}
