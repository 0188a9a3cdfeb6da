package orchestrate

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/abramin/swiftscip/internal/indexstore/rawstore"
	"github.com/abramin/swiftscip/internal/scipmodel"
	"github.com/abramin/swiftscip/internal/scipstore"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func buildRepoFixture(t *testing.T) (derivedData, projectRoot string) {
	t.Helper()
	projectRoot = t.TempDir()
	derivedData = t.TempDir()

	runGit(t, projectRoot, "init", "-q")
	runGit(t, projectRoot, "config", "user.email", "test@example.com")
	runGit(t, projectRoot, "config", "user.name", "test")

	if err := os.WriteFile(filepath.Join(projectRoot, "Foo.swift"), []byte("class Foo {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, projectRoot, "add", ".")
	runGit(t, projectRoot, "commit", "-q", "-m", "initial")

	dataStoreDir := filepath.Join(derivedData, "Index.noindex", "DataStore")
	if err := os.MkdirAll(dataStoreDir, 0755); err != nil {
		t.Fatal(err)
	}
	raw, err := rawstore.Open(filepath.Join(dataStoreDir, "store.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()

	if err := raw.PutSymbol(rawstore.RawSymbol{USR: "s:8MyModule3FooC", Name: "Foo", Kind: "class"}); err != nil {
		t.Fatal(err)
	}
	if _, err := raw.PutOccurrence(rawstore.RawOccurrence{
		USR: "s:8MyModule3FooC", FilePath: filepath.Join(projectRoot, "Foo.swift"),
		Line: 1, Column: 7, Roles: uint32(scipmodel.RoleDefinition), IsCanonical: true,
	}, nil); err != nil {
		t.Fatal(err)
	}

	return derivedData, projectRoot
}

func baseOptions(derivedData, projectRoot, outputPath string) Options {
	return Options{
		DerivedDataRoot: derivedData,
		ProjectRoot:     projectRoot,
		OutputPath:      outputPath,
		StateDir:        ".swiftscip",
		SourceExtension: ".swift",
		ToolName:        "swiftscip",
		ToolVersion:     "0.1.0",
	}
}

func TestRunLegacyJSONOutsideRepository(t *testing.T) {
	derivedData := t.TempDir()
	projectRoot := t.TempDir()
	dataStoreDir := filepath.Join(derivedData, "Index.noindex", "DataStore")
	if err := os.MkdirAll(dataStoreDir, 0755); err != nil {
		t.Fatal(err)
	}
	raw, err := rawstore.Open(filepath.Join(dataStoreDir, "store.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := raw.PutSymbol(rawstore.RawSymbol{USR: "s:8MyModule3FooC", Name: "Foo", Kind: "class"}); err != nil {
		t.Fatal(err)
	}
	fooPath := filepath.Join(projectRoot, "Foo.swift")
	if err := os.WriteFile(fooPath, []byte("class Foo {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := raw.PutOccurrence(rawstore.RawOccurrence{
		USR: "s:8MyModule3FooC", FilePath: fooPath, Line: 1, Column: 7,
		Roles: uint32(scipmodel.RoleDefinition), IsCanonical: true,
	}, nil); err != nil {
		t.Fatal(err)
	}
	raw.Close()

	outputPath := filepath.Join(t.TempDir(), "out.json")
	opts := baseOptions(derivedData, projectRoot, outputPath)

	result, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Mode != ModeLegacyJSON {
		t.Fatalf("Mode = %v, want %v", result.Mode, ModeLegacyJSON)
	}
	if _, err := os.Stat(outputPath); err != nil {
		t.Errorf("expected output file to exist: %v", err)
	}
}

func TestRunFullRebuildThenFastSwitch(t *testing.T) {
	derivedData, projectRoot := buildRepoFixture(t)
	outputPath := filepath.Join(t.TempDir(), "out.db")
	opts := baseOptions(derivedData, projectRoot, outputPath)

	result, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if result.Mode != ModeFullRebuild {
		t.Fatalf("Mode = %v, want %v", result.Mode, ModeFullRebuild)
	}
	if result.SymbolCount != 1 {
		t.Errorf("SymbolCount = %d, want 1", result.SymbolCount)
	}

	store, err := scipstore.Open(outputPath, true)
	if err != nil {
		t.Fatalf("opening output db: %v", err)
	}
	paths, err := store.GetIndexedFilePaths()
	store.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != "Foo.swift" {
		t.Errorf("GetIndexedFilePaths() = %v, want [Foo.swift]", paths)
	}

	second, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.Mode != ModeFastSwitch {
		t.Fatalf("Mode = %v, want %v", second.Mode, ModeFastSwitch)
	}
}

func TestRunIncrementalUpdateOnNewCommit(t *testing.T) {
	derivedData, projectRoot := buildRepoFixture(t)
	outputPath := filepath.Join(t.TempDir(), "out.db")
	opts := baseOptions(derivedData, projectRoot, outputPath)
	opts.Incremental = true

	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	barPath := filepath.Join(projectRoot, "Bar.swift")
	if err := os.WriteFile(barPath, []byte("class Bar {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, projectRoot, "add", ".")
	runGit(t, projectRoot, "commit", "-q", "-m", "add bar")

	raw, err := rawstore.Open(filepath.Join(derivedData, "Index.noindex", "DataStore", "store.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := raw.PutSymbol(rawstore.RawSymbol{USR: "s:8MyModule3BarC", Name: "Bar", Kind: "class"}); err != nil {
		t.Fatal(err)
	}
	if _, err := raw.PutOccurrence(rawstore.RawOccurrence{
		USR: "s:8MyModule3BarC", FilePath: barPath, Line: 1, Column: 7,
		Roles: uint32(scipmodel.RoleDefinition), IsCanonical: true,
	}, nil); err != nil {
		t.Fatal(err)
	}
	raw.Close()

	// The new commit moves the cache's stored commit out of sync with
	// HEAD, so the fast path is skipped and the incremental decision
	// computes a non-empty changed-files-since-commit set.
	result, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if result.Mode != ModeIncremental {
		t.Fatalf("Mode = %v, want %v", result.Mode, ModeIncremental)
	}

	store, err := scipstore.Open(outputPath, true)
	if err != nil {
		t.Fatalf("opening output db: %v", err)
	}
	defer store.Close()
	paths, err := store.GetIndexedFilePaths()
	if err != nil {
		t.Fatal(err)
	}
	var sawBar bool
	for _, p := range paths {
		if p == "Bar.swift" {
			sawBar = true
		}
	}
	if !sawBar {
		t.Errorf("expected Bar.swift in indexed paths after incremental update, got %v", paths)
	}
}

func TestRunForceBypassesFastPath(t *testing.T) {
	derivedData, projectRoot := buildRepoFixture(t)
	outputPath := filepath.Join(t.TempDir(), "out.db")
	opts := baseOptions(derivedData, projectRoot, outputPath)

	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	opts.Force = true
	result, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("forced Run() error = %v", err)
	}
	if result.Mode != ModeFullRebuild {
		t.Fatalf("Mode = %v, want %v (force should bypass fast-path)", result.Mode, ModeFullRebuild)
	}
}
