// Package config holds the project-level knobs that shape indexing: where
// state lives, what a "source file" is, which derived-data layouts to try,
// and the tool identity written into SCIP metadata. A hardcoded Default()
// is optionally overridden field-by-field by a YAML file at the project
// root.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the swiftscip configuration.
type Config struct {
	// StateDir is the directory (relative to the project root) that holds
	// branch caches, e.g. ".swift-scip". The legacy state file is not kept
	// here; it sits directly in the project root.
	StateDir string `yaml:"state_dir"`

	// SourceExtension is the file extension considered "source" when
	// filtering occurrences, e.g. ".swift".
	SourceExtension string `yaml:"source_extension"`

	// DataStoreCandidates lists derived-data-relative subpaths to probe,
	// in preference order, for the compiler's index store.
	DataStoreCandidates []string `yaml:"data_store_candidates"`

	// IncludeSnippetsByDefault controls whether the index command reads
	// one-line snippets when --no-include-snippets isn't passed. A nil
	// pointer means "use the default"; Load resolves it before returning.
	IncludeSnippetsByDefault *bool `yaml:"include_snippets_by_default"`

	// SQLiteCacheKiB is a page cache size, in KiB. It is loaded and merged
	// like the other fields, but no database open reads it: scipstore.Open
	// sets its own fixed cache size.
	SQLiteCacheKiB int `yaml:"sqlite_cache_kib"`

	// Tool identifies this indexer in the SCIP/legacy-JSON metadata block.
	Tool ToolInfo `yaml:"tool"`
}

// ToolInfo names the tool and version recorded in emitted metadata.
type ToolInfo struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	includeSnippets := true
	return &Config{
		StateDir:        ".swift-scip",
		SourceExtension: ".swift",
		DataStoreCandidates: []string{
			"Index.noindex/DataStore",
			"Index/DataStore",
		},
		IncludeSnippetsByDefault: &includeSnippets,
		SQLiteCacheKiB:           80 * 1024,
		Tool: ToolInfo{
			Name:    "swiftscip",
			Version: "0.1.0",
		},
	}
}

// Load reads configuration from file, falling back to defaults.
// If configPath is empty, it looks for scip.yaml in the current directory.
// Values in the config file replace defaults field-by-field (no deep merge
// within a field: a slice present in the file wins wholesale).
func Load(configPath string) (*Config, error) {
	defaults := Default()

	if configPath == "" {
		configPath = "scip.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return nil, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, err
	}

	defaults.Merge(&fileCfg)
	return defaults, nil
}

// LoadFromDir loads configuration from the specified project directory.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, "scip.yaml"))
}

// Merge combines another config into this one, with other taking precedence
// on any field it sets.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.StateDir != "" {
		c.StateDir = other.StateDir
	}
	if other.SourceExtension != "" {
		c.SourceExtension = other.SourceExtension
	}
	if len(other.DataStoreCandidates) > 0 {
		c.DataStoreCandidates = other.DataStoreCandidates
	}
	if other.IncludeSnippetsByDefault != nil {
		c.IncludeSnippetsByDefault = other.IncludeSnippetsByDefault
	}
	if other.SQLiteCacheKiB != 0 {
		c.SQLiteCacheKiB = other.SQLiteCacheKiB
	}
	if other.Tool.Name != "" {
		c.Tool.Name = other.Tool.Name
	}
	if other.Tool.Version != "" {
		c.Tool.Version = other.Tool.Version
	}
}

// DataStoreCandidatePaths returns the absolute candidate paths for the
// index store under the given derived-data root, in preference order.
func (c *Config) DataStoreCandidatePaths(derivedDataRoot string) []string {
	paths := make([]string, len(c.DataStoreCandidates))
	for i, rel := range c.DataStoreCandidates {
		paths[i] = filepath.Join(derivedDataRoot, rel)
	}
	return paths
}

// SnippetsEnabled resolves the include-snippets default, tolerating a nil
// pointer (an unloaded or zero-value Config).
func (c *Config) SnippetsEnabled() bool {
	return c.IncludeSnippetsByDefault == nil || *c.IncludeSnippetsByDefault
}
