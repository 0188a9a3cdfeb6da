package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.StateDir == "" {
		t.Error("expected default state dir")
	}
	if cfg.SourceExtension != ".swift" {
		t.Errorf("expected default source extension .swift, got %q", cfg.SourceExtension)
	}
	if len(cfg.DataStoreCandidates) == 0 {
		t.Error("expected default data store candidates")
	}
	if !cfg.SnippetsEnabled() {
		t.Error("expected snippets enabled by default")
	}
	if cfg.SQLiteCacheKiB == 0 {
		t.Error("expected default sqlite cache size")
	}
}

func TestLoadNonExistent(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("expected no error for nonexistent file, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config")
	}
	if cfg.StateDir == "" {
		t.Error("expected default state dir")
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
state_dir: .custom-state
source_extension: .kt
data_store_candidates:
  - Index/DataStore
include_snippets_by_default: false
tool:
  name: customtool
  version: "2.0"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "scip.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.StateDir != ".custom-state" {
		t.Errorf("expected .custom-state, got %s", cfg.StateDir)
	}
	if cfg.SourceExtension != ".kt" {
		t.Errorf("expected .kt, got %s", cfg.SourceExtension)
	}
	if len(cfg.DataStoreCandidates) != 1 {
		t.Errorf("expected 1 data store candidate, got %d", len(cfg.DataStoreCandidates))
	}
	if cfg.SnippetsEnabled() {
		t.Error("expected snippets disabled")
	}
	if cfg.Tool.Name != "customtool" || cfg.Tool.Version != "2.0" {
		t.Errorf("expected overridden tool info, got %+v", cfg.Tool)
	}
	// SQLiteCacheKiB was not set in the file, so the default survives.
	if cfg.SQLiteCacheKiB != Default().SQLiteCacheKiB {
		t.Errorf("expected default sqlite cache size to survive merge, got %d", cfg.SQLiteCacheKiB)
	}
}

func TestDataStoreCandidatePaths(t *testing.T) {
	cfg := Default()
	paths := cfg.DataStoreCandidatePaths("/derived/data")
	if len(paths) != len(cfg.DataStoreCandidates) {
		t.Fatalf("expected %d paths, got %d", len(cfg.DataStoreCandidates), len(paths))
	}
	want := filepath.Join("/derived/data", "Index.noindex/DataStore")
	if paths[0] != want {
		t.Errorf("paths[0] = %q, want %q", paths[0], want)
	}
}
