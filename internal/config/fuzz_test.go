package config

import (
	"os"
	"path/filepath"
	"testing"
)

func FuzzLoad(f *testing.F) {
	// Seed with the shipped default config
	f.Add([]byte(DefaultConfigYAML()))

	// Seed with minimal valid YAML
	f.Add([]byte("operator: allan\ninitial_level: 2\n"))

	// Seed with an out-of-range level
	f.Add([]byte("initial_level: 99\n"))

	// Seed with empty
	f.Add([]byte{})

	// Seed with garbage
	f.Add([]byte(`{{{not yaml at all`))

	f.Fuzz(func(t *testing.T, data []byte) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		os.WriteFile(path, data, 0644)

		// Must not panic on any input
		cfg, _, err := LoadWithHash(path)
		if err == nil && cfg == nil {
			t.Error("nil config without error")
		}
	})
}
