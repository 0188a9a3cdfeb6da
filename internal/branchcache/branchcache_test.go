package branchcache

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/abramin/swiftscip/internal/scipstore"
	"github.com/abramin/swiftscip/internal/vcs"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "test"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "Foo.swift"), []byte("class Foo {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{{"add", "."}, {"commit", "-q", "-m", "initial"}} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	return dir
}

func TestCurrentBranchSanitizes(t *testing.T) {
	repo := initRepo(t)
	cmd := exec.Command("git", "checkout", "-q", "-b", "feature/foo%bar")
	cmd.Dir = repo
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git checkout: %v\n%s", err, out)
	}

	m := New(repo, ".swiftscip", vcs.New(repo, ".swift"))
	branch, err := m.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch() error = %v", err)
	}
	if branch != "feature_foo_bar" {
		t.Errorf("CurrentBranch() = %q, want %q", branch, "feature_foo_bar")
	}
}

func TestBranchCacheDirAndDatabasePath(t *testing.T) {
	m := New("/proj", ".swiftscip", vcs.New("/proj", ".swift"))
	if got, want := m.BranchCacheDir("main"), filepath.Join("/proj", ".swiftscip", "branches", "main"); got != want {
		t.Errorf("BranchCacheDir() = %q, want %q", got, want)
	}
	if got, want := m.BranchDatabasePath("main"), filepath.Join("/proj", ".swiftscip", "branches", "main", "index.db"); got != want {
		t.Errorf("BranchDatabasePath() = %q, want %q", got, want)
	}
}

func TestGetBranchCacheMissing(t *testing.T) {
	repo := initRepo(t)
	m := New(repo, ".swiftscip", vcs.New(repo, ".swift"))
	_, ok, err := m.GetBranchCache("main")
	if err != nil {
		t.Fatalf("GetBranchCache() error = %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing cache")
	}
}

func TestCreateSaveAndGetBranchCache(t *testing.T) {
	repo := initRepo(t)
	m := New(repo, ".swiftscip", vcs.New(repo, ".swift"))

	srcPath := filepath.Join(t.TempDir(), "output.db")
	store, err := scipstore.Open(srcPath, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveState("abc123", []string{"Foo.swift"}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	if err := m.SaveToBranchCache("main", srcPath); err != nil {
		t.Fatalf("SaveToBranchCache() error = %v", err)
	}

	cache, ok, err := m.GetBranchCache("main")
	if err != nil {
		t.Fatalf("GetBranchCache() error = %v", err)
	}
	if !ok {
		t.Fatal("expected cache to exist after SaveToBranchCache")
	}
	if cache.Commit != "abc123" {
		t.Errorf("cache.Commit = %q, want %q", cache.Commit, "abc123")
	}

	commit, ok, err := m.BranchCommit("main")
	if err != nil || !ok || commit != "abc123" {
		t.Errorf("BranchCommit() = (%q, %v, %v)", commit, ok, err)
	}
}

func TestFastSwitchToBranchNoCache(t *testing.T) {
	repo := initRepo(t)
	m := New(repo, ".swiftscip", vcs.New(repo, ".swift"))
	out := filepath.Join(t.TempDir(), "output.db")
	if err := m.FastSwitchToBranch("main", out); err == nil {
		t.Fatal("expected error when no branch cache exists")
	}
}

func TestFastSwitchToBranchCopiesDatabase(t *testing.T) {
	repo := initRepo(t)
	m := New(repo, ".swiftscip", vcs.New(repo, ".swift"))

	srcPath := filepath.Join(t.TempDir(), "output.db")
	store, err := scipstore.Open(srcPath, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveState("abc123", []string{"Foo.swift"}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	if err := m.SaveToBranchCache("main", srcPath); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "sub", "output.db")
	if err := m.FastSwitchToBranch("main", out); err != nil {
		t.Fatalf("FastSwitchToBranch() error = %v", err)
	}

	restored, err := scipstore.Open(out, true)
	if err != nil {
		t.Fatalf("opening switched database: %v", err)
	}
	defer restored.Close()
	state, ok, err := restored.LoadState()
	if err != nil || !ok || state.Commit != "abc123" {
		t.Errorf("LoadState() = (%+v, %v, %v)", state, ok, err)
	}
}

func TestListCleanBranchCaches(t *testing.T) {
	repo := initRepo(t)
	m := New(repo, ".swiftscip", vcs.New(repo, ".swift"))

	for _, branch := range []string{"main", "dev"} {
		srcPath := filepath.Join(t.TempDir(), "output.db")
		store, err := scipstore.Open(srcPath, false)
		if err != nil {
			t.Fatal(err)
		}
		store.Close()
		if err := m.SaveToBranchCache(branch, srcPath); err != nil {
			t.Fatal(err)
		}
	}

	branches, err := m.ListCachedBranches()
	if err != nil {
		t.Fatalf("ListCachedBranches() error = %v", err)
	}
	if len(branches) != 2 || branches[0] != "dev" || branches[1] != "main" {
		t.Fatalf("ListCachedBranches() = %v, want [dev main]", branches)
	}

	if err := m.CleanBranchCache("dev"); err != nil {
		t.Fatalf("CleanBranchCache() error = %v", err)
	}
	branches, err = m.ListCachedBranches()
	if err != nil {
		t.Fatal(err)
	}
	if len(branches) != 1 || branches[0] != "main" {
		t.Fatalf("expected only main to remain, got %v", branches)
	}

	if err := m.CleanAllCaches(); err != nil {
		t.Fatalf("CleanAllCaches() error = %v", err)
	}
	branches, err = m.ListCachedBranches()
	if err != nil {
		t.Fatal(err)
	}
	if len(branches) != 0 {
		t.Fatalf("expected no branches after CleanAllCaches, got %v", branches)
	}
}

func TestMigrateLegacyState(t *testing.T) {
	repo := initRepo(t)
	// Literal shape of a pre-branch-cache state file, as written by the
	// tool's previous single-database version.
	raw := []byte(`{"lastCommitHash": "abc", "indexedFiles": {"f.swift": ""}}`)
	if err := os.WriteFile(filepath.Join(repo, legacyStateFile), raw, 0644); err != nil {
		t.Fatal(err)
	}

	m := New(repo, ".swiftscip", vcs.New(repo, ".swift"))
	ran, err := m.MigrateLegacyState()
	if err != nil {
		t.Fatalf("MigrateLegacyState() error = %v", err)
	}
	if !ran {
		t.Fatal("expected migration to run")
	}

	if _, err := os.Stat(filepath.Join(repo, legacyStateFile)); !os.IsNotExist(err) {
		t.Error("expected legacy state file to be renamed away")
	}
	if _, err := os.Stat(filepath.Join(repo, legacyStateFile+".backup")); err != nil {
		t.Errorf("expected .backup file to exist: %v", err)
	}

	branch, err := m.CurrentBranch()
	if err != nil {
		t.Fatal(err)
	}
	cache, ok, err := m.GetBranchCache(branch)
	if err != nil || !ok {
		t.Fatalf("GetBranchCache(%q) = (_, %v, %v)", branch, ok, err)
	}
	if cache.Commit != "abc" {
		t.Errorf("cache.Commit = %q, want %q", cache.Commit, "abc")
	}
}

func TestMigrateLegacyStateNoFile(t *testing.T) {
	repo := initRepo(t)
	m := New(repo, ".swiftscip", vcs.New(repo, ".swift"))
	ran, err := m.MigrateLegacyState()
	if err != nil {
		t.Fatalf("MigrateLegacyState() error = %v", err)
	}
	if ran {
		t.Error("expected no migration when legacy file absent")
	}
}
