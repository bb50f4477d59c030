package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	oldPath := configPath
	configPath = filepath.Join(dir, "config.yaml")
	defer func() { configPath = oldPath }()

	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("init: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(data), "initial_level: 3") {
		t.Error("generated config missing initial_level")
	}
}

func TestInitDoesNotOverwriteWithoutForce(t *testing.T) {
	dir := t.TempDir()
	oldPath := configPath
	configPath = filepath.Join(dir, "config.yaml")
	defer func() { configPath = oldPath }()

	if err := os.WriteFile(configPath, []byte("operator: allan\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("init: %v", err)
	}

	data, _ := os.ReadFile(configPath)
	if string(data) != "operator: allan\n" {
		t.Error("existing config was overwritten without --force")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("a-much-longer-string", 10); got != "a-much-..." {
		t.Errorf("got %q", got)
	}
	if len(truncate("a-much-longer-string", 10)) != 10 {
		t.Error("truncated string exceeds max")
	}
}
