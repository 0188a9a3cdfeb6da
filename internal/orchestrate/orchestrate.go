// Package orchestrate implements the index operation: the decision tree
// that chooses between legacy JSON emission, a fast branch-cache switch,
// an incremental update, and a full rebuild, composing the Index-Store
// Reader, Storage Engine, VCS State Tracker, and Branch Cache Manager.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abramin/swiftscip/internal/branchcache"
	"github.com/abramin/swiftscip/internal/indexstore"
	"github.com/abramin/swiftscip/internal/legacyjson"
	"github.com/abramin/swiftscip/internal/sciperr"
	"github.com/abramin/swiftscip/internal/scipmodel"
	"github.com/abramin/swiftscip/internal/scipstore"
	"github.com/abramin/swiftscip/internal/vcs"
)

// Options configures one index operation. It corresponds directly to the
// swiftscip index CLI's flags.
type Options struct {
	DerivedDataRoot string
	ProjectRoot     string
	OutputPath      string
	StateDir        string // relative to ProjectRoot, e.g. ".swiftscip"
	SourceExtension string

	Incremental     bool
	Force           bool
	IncludeSnippets bool
	JSON            bool
	Modules         []string // restricts output to these modules; empty means "all"

	ToolName    string
	ToolVersion string

	DataStoreCandidates []string
}

// Mode describes which branch of the decision tree a run took.
type Mode string

const (
	ModeLegacyJSON   Mode = "legacy-json"
	ModeFastSwitch   Mode = "fast-switch"
	ModeCacheRestore Mode = "cache-restore"
	ModeIncremental  Mode = "incremental"
	ModeFullRebuild  Mode = "full-rebuild"
)

// Result summarizes a completed index operation for the CLI to report.
type Result struct {
	Mode            Mode
	OutputPath      string
	SymbolCount     int
	OccurrenceCount int
	FilesIndexed    int
	Commit          string
	Branch          string
}

// Run executes the full index-operation decision tree: legacy-JSON gate,
// legacy-state migration, branch-cache fast-path check, incremental
// decision, then full rebuild as the fallback.
func Run(ctx context.Context, opts Options) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	tracker := vcs.New(opts.ProjectRoot, opts.SourceExtension)

	if opts.JSON || !tracker.IsRepository() {
		return runLegacyJSON(opts, tracker)
	}

	return runRelational(opts, tracker)
}

func runLegacyJSON(opts Options, tracker *vcs.Tracker) (*Result, error) {
	reader, err := indexstore.Open(indexstore.Options{
		DerivedDataRoot:     opts.DerivedDataRoot,
		ProjectRoot:         opts.ProjectRoot,
		IncludeSnippets:     opts.IncludeSnippets,
		SourceExtension:     opts.SourceExtension,
		DataStoreCandidates: opts.DataStoreCandidates,
	})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	symbols, relationships, err := reader.CollectSymbols()
	if err != nil {
		return nil, err
	}
	occurrences, err := reader.CollectOccurrences(nil)
	if err != nil {
		return nil, err
	}
	symbols, occurrences, relationships = filterByModules(symbols, occurrences, relationships, opts.Modules)

	docs := groupIntoDocuments(symbols, occurrences)

	f, err := os.Create(opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("creating legacy json output %s: %w", opts.OutputPath, err)
	}
	defer f.Close()

	meta := scipmodel.Metadata{
		Version: 1, ToolName: opts.ToolName, ToolVersion: opts.ToolVersion,
		ProjectRootURI: "file://" + opts.ProjectRoot, TextDocumentEncoding: "UTF-8",
	}
	if err := legacyjson.Encode(f, meta, docs, relationships); err != nil {
		return nil, err
	}

	result := &Result{
		Mode: ModeLegacyJSON, OutputPath: opts.OutputPath,
		SymbolCount: len(symbols), OccurrenceCount: len(occurrences), FilesIndexed: len(docs),
	}

	if opts.Incremental && tracker.IsRepository() {
		commit, err := tracker.CurrentCommitHash()
		if err != nil {
			return result, nil
		}
		result.Commit = commit

		manager := branchcache.New(opts.ProjectRoot, opts.StateDir, tracker)
		branch, err := manager.CurrentBranch()
		if err != nil {
			return result, nil
		}
		result.Branch = branch
		if err := manager.CreateBranchCache(branch); err != nil {
			return result, nil
		}
		store, err := scipstore.Open(manager.BranchDatabasePath(branch), false)
		if err != nil {
			return result, nil
		}
		defer store.Close()
		_ = store.SaveState(commit, uniquePaths(occurrences))
	}

	return result, nil
}

func runRelational(opts Options, tracker *vcs.Tracker) (*Result, error) {
	manager := branchcache.New(opts.ProjectRoot, opts.StateDir, tracker)
	if _, err := manager.MigrateLegacyState(); err != nil && !errors.Is(err, sciperr.ErrMigrationFailure) {
		return nil, fmt.Errorf("migrating legacy state: %w", err)
	}

	branch, err := manager.CurrentBranch()
	if err != nil {
		return nil, err
	}
	commit, err := tracker.CurrentCommitHash()
	if err != nil {
		return nil, err
	}

	outputPath := normalizeToDB(opts.OutputPath)

	cache, hasCache, err := manager.GetBranchCache(branch)
	if err != nil {
		return nil, err
	}

	// Fast-path check.
	if hasCache && cache.Commit == commit && !opts.Force {
		if err := manager.FastSwitchToBranch(branch, outputPath); err != nil {
			return nil, err
		}
		paths, err := indexedPaths(outputPath)
		if err != nil {
			return nil, err
		}
		return &Result{Mode: ModeFastSwitch, OutputPath: outputPath, FilesIndexed: len(paths), Commit: commit, Branch: branch}, nil
	}

	// Incremental decision.
	if opts.Incremental && !opts.Force {
		changed, hasState, err := tracker.ChangedFilesForBranch(branch, manager)
		if err != nil {
			return nil, err
		}
		if hasState && len(changed) == 0 && hasCache {
			if err := manager.FastSwitchToBranch(branch, outputPath); err != nil {
				return nil, err
			}
			store, err := scipstore.Open(outputPath, false)
			if err != nil {
				return nil, err
			}
			defer store.Close()
			files, err := store.GetIndexedFilePaths()
			if err != nil {
				return nil, err
			}
			if err := store.SaveState(commit, files); err != nil {
				return nil, err
			}
			if err := manager.SaveToBranchCache(branch, outputPath); err != nil {
				return nil, err
			}
			return &Result{Mode: ModeCacheRestore, OutputPath: outputPath, FilesIndexed: len(files), Commit: commit, Branch: branch}, nil
		}
		if hasState && len(changed) > 0 {
			return runIncrementalUpdate(opts, tracker, manager, branch, commit, outputPath, changed)
		}
		// Absent branch state: fall through to full rebuild.
	}

	return runFullRebuild(opts, manager, branch, commit, outputPath)
}

func runIncrementalUpdate(opts Options, tracker *vcs.Tracker, manager *branchcache.Manager, branch, commit, outputPath string, changed []string) (*Result, error) {
	recordedCommit, _, err := manager.BranchCommit(branch)
	if err != nil {
		return nil, err
	}

	if err := manager.FastSwitchToBranch(branch, outputPath); err != nil {
		return nil, err
	}

	reader, err := indexstore.Open(indexstore.Options{
		DerivedDataRoot:     opts.DerivedDataRoot,
		ProjectRoot:         opts.ProjectRoot,
		IncludeSnippets:     opts.IncludeSnippets,
		SourceExtension:     opts.SourceExtension,
		DataStoreCandidates: opts.DataStoreCandidates,
	})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	symbols, _, err := reader.CollectSymbols()
	if err != nil {
		return nil, err
	}
	occurrences, err := reader.CollectOccurrences(changed)
	if err != nil {
		return nil, err
	}
	symbols, occurrences, _ = filterByModules(symbols, occurrences, nil, opts.Modules)

	deleted, err := tracker.DeletedFilesSince(recordedCommit)
	if err != nil {
		return nil, err
	}

	store, err := scipstore.Open(outputPath, false)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if len(deleted) > 0 {
		if err := store.DeleteDocuments(deleted); err != nil {
			return nil, err
		}
	}
	if err := store.UpdateDocuments(changed, symbols, occurrences); err != nil {
		return nil, err
	}

	files, err := store.GetIndexedFilePaths()
	if err != nil {
		return nil, err
	}
	if err := store.SaveState(commit, files); err != nil {
		return nil, err
	}
	if err := manager.SaveToBranchCache(branch, outputPath); err != nil {
		return nil, err
	}

	return &Result{
		Mode: ModeIncremental, OutputPath: outputPath,
		SymbolCount: len(symbols), OccurrenceCount: len(occurrences), FilesIndexed: len(files),
		Commit: commit, Branch: branch,
	}, nil
}

func runFullRebuild(opts Options, manager *branchcache.Manager, branch, commit, outputPath string) (*Result, error) {
	reader, err := indexstore.Open(indexstore.Options{
		DerivedDataRoot:     opts.DerivedDataRoot,
		ProjectRoot:         opts.ProjectRoot,
		IncludeSnippets:     opts.IncludeSnippets,
		SourceExtension:     opts.SourceExtension,
		DataStoreCandidates: opts.DataStoreCandidates,
	})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	symbols, relationships, err := reader.CollectSymbols()
	if err != nil {
		return nil, err
	}
	occurrences, err := reader.CollectOccurrences(nil)
	if err != nil {
		return nil, err
	}
	symbols, occurrences, relationships = filterByModules(symbols, occurrences, relationships, opts.Modules)

	if err := manager.CreateBranchCache(branch); err != nil {
		return nil, err
	}

	store, err := scipstore.Open(outputPath, false)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	meta := scipmodel.Metadata{
		Version: 1, ToolName: opts.ToolName, ToolVersion: opts.ToolVersion,
		ProjectRootURI: "file://" + opts.ProjectRoot, TextDocumentEncoding: "UTF-8",
	}
	if err := store.Write(meta, symbols, occurrences, relationships); err != nil {
		return nil, err
	}

	files := uniquePaths(occurrences)
	if err := store.SaveState(commit, files); err != nil {
		return nil, err
	}
	if err := manager.SaveToBranchCache(branch, outputPath); err != nil {
		return nil, err
	}

	return &Result{
		Mode: ModeFullRebuild, OutputPath: outputPath,
		SymbolCount: len(symbols), OccurrenceCount: len(occurrences), FilesIndexed: len(files),
		Commit: commit, Branch: branch,
	}, nil
}

func normalizeToDB(path string) string {
	if strings.HasSuffix(path, ".db") {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".db"
}

func indexedPaths(dbPath string) ([]string, error) {
	store, err := scipstore.Open(dbPath, true)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.GetIndexedFilePaths()
}

func uniquePaths(occurrences []scipmodel.Occurrence) []string {
	seen := make(map[string]bool, len(occurrences))
	var out []string
	for _, occ := range occurrences {
		if !seen[occ.Path] {
			seen[occ.Path] = true
			out = append(out, occ.Path)
		}
	}
	sort.Strings(out)
	return out
}

func groupIntoDocuments(symbols []scipmodel.Symbol, occurrences []scipmodel.Occurrence) []legacyjson.Document {
	definingPath := make(map[string]string, len(occurrences))
	byPath := make(map[string][]scipmodel.Occurrence)
	for _, occ := range occurrences {
		byPath[occ.Path] = append(byPath[occ.Path], occ)
		if occ.Roles.Has(scipmodel.RoleDefinition) {
			definingPath[occ.SymbolID] = occ.Path
		}
	}
	symbolsByPath := make(map[string][]scipmodel.Symbol)
	for _, sym := range symbols {
		path, ok := definingPath[sym.SymbolID]
		if !ok {
			continue
		}
		symbolsByPath[path] = append(symbolsByPath[path], sym)
	}

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	docs := make([]legacyjson.Document, 0, len(paths))
	for _, p := range paths {
		docs = append(docs, legacyjson.Document{
			Path:        p,
			Symbols:     symbolsByPath[p],
			Occurrences: byPath[p],
		})
	}
	return docs
}

func filterByModules(symbols []scipmodel.Symbol, occurrences []scipmodel.Occurrence, relationships []scipmodel.Relationship, modules []string) ([]scipmodel.Symbol, []scipmodel.Occurrence, []scipmodel.Relationship) {
	if len(modules) == 0 {
		return symbols, occurrences, relationships
	}
	allowed := make(map[string]bool, len(modules))
	for _, m := range modules {
		allowed[m] = true
	}

	keepSymbol := make(map[string]bool)
	var filteredSymbols []scipmodel.Symbol
	for _, sym := range symbols {
		if allowed[sym.Module] {
			filteredSymbols = append(filteredSymbols, sym)
			keepSymbol[sym.SymbolID] = true
		}
	}

	var filteredOccurrences []scipmodel.Occurrence
	for _, occ := range occurrences {
		if keepSymbol[occ.SymbolID] {
			filteredOccurrences = append(filteredOccurrences, occ)
		}
	}

	var filteredRelationships []scipmodel.Relationship
	for _, rel := range relationships {
		if keepSymbol[rel.SymbolID] {
			filteredRelationships = append(filteredRelationships, rel)
		}
	}

	return filteredSymbols, filteredOccurrences, filteredRelationships
}
