// Package branchcache implements the Branch Cache Manager: per-branch
// on-disk snapshots of the storage engine's database, enabling an O(1)
// (copy-sized) branch switch instead of re-reading the compiler's index
// store. Each branch's database lives under
// <project>/<state-dir>/branches/<sanitized-branch>/index.db.
package branchcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abramin/swiftscip/internal/sciperr"
	"github.com/abramin/swiftscip/internal/scipstore"
	"github.com/abramin/swiftscip/internal/vcs"
)

const (
	branchesDir     = "branches"
	databaseName    = "index.db"
	legacyStateFile = ".swift-scip-state.json"
)

var unsafeChars = strings.NewReplacer(
	"/", "_", "\\", "_", "?", "_", "%", "_",
	"*", "_", "|", "_", `"`, "_", "<", "_", ">", "_", ":", "_",
)

// Manager owns the branch cache directory tree for one project.
type Manager struct {
	projectRoot string
	stateDir    string
	tracker     *vcs.Tracker
}

// New constructs a Manager rooted at <projectRoot>/<stateDir>/branches.
func New(projectRoot, stateDir string, tracker *vcs.Tracker) *Manager {
	return &Manager{projectRoot: projectRoot, stateDir: stateDir, tracker: tracker}
}

// Cache describes a branch's cached database as reported by GetBranchCache.
type Cache struct {
	Branch string
	Commit string
	Path   string
	MTime  time.Time
}

// CurrentBranch returns the working tree's branch name, with filesystem-
// unsafe characters replaced by underscores.
func (m *Manager) CurrentBranch() (string, error) {
	branch, err := m.tracker.CurrentBranchName()
	if err != nil {
		return "", err
	}
	return sanitize(branch), nil
}

func sanitize(branch string) string {
	return unsafeChars.Replace(branch)
}

// BranchCacheDir returns the directory holding a branch's cache database.
func (m *Manager) BranchCacheDir(branch string) string {
	return filepath.Join(m.projectRoot, m.stateDir, branchesDir, sanitize(branch))
}

// BranchDatabasePath returns the path to a branch's cache database file.
func (m *Manager) BranchDatabasePath(branch string) string {
	return filepath.Join(m.BranchCacheDir(branch), databaseName)
}

// GetBranchCache opens the branch's database read-only and reads its Index
// State. ok is false if the cache file doesn't exist.
func (m *Manager) GetBranchCache(branch string) (Cache, bool, error) {
	path := m.BranchDatabasePath(branch)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Cache{}, false, nil
	}
	if err != nil {
		return Cache{}, false, err
	}

	store, err := scipstore.Open(path, true)
	if err != nil {
		return Cache{}, false, err
	}
	defer store.Close()

	state, ok, err := store.LoadState()
	if err != nil {
		return Cache{}, false, err
	}
	if !ok {
		return Cache{}, false, nil
	}

	return Cache{Branch: branch, Commit: state.Commit, Path: path, MTime: info.ModTime()}, true, nil
}

// BranchCommit implements vcs.StateReader, letting the VCS Tracker compare
// a branch's recorded commit without importing this package.
func (m *Manager) BranchCommit(branch string) (string, bool, error) {
	cache, ok, err := m.GetBranchCache(branch)
	if err != nil || !ok {
		return "", ok, err
	}
	return cache.Commit, true, nil
}

// CreateBranchCache ensures the branch's cache directory exists.
func (m *Manager) CreateBranchCache(branch string) error {
	return os.MkdirAll(m.BranchCacheDir(branch), 0755)
}

// FastSwitchToBranch copies the branch's cached database (and its WAL/SHM
// sidecars, if present) to out, replacing anything already there. This is
// the O(size-of-database) branch switch: no re-reading of the compiler's
// store is involved.
func (m *Manager) FastSwitchToBranch(branch, out string) error {
	src := m.BranchDatabasePath(branch)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return sciperr.ErrCacheNotFound
	} else if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	removeWithSidecars(out)

	return copyWithSidecars(src, out)
}

// SaveToBranchCache copies src (and its sidecars) into the branch's cache
// directory, replacing any existing cache.
func (m *Manager) SaveToBranchCache(branch, src string) error {
	if err := m.CreateBranchCache(branch); err != nil {
		return err
	}
	dst := m.BranchDatabasePath(branch)
	removeWithSidecars(dst)
	return copyWithSidecars(src, dst)
}

// ListCachedBranches enumerates subdirectories that contain an index.db
// file.
func (m *Manager) ListCachedBranches() ([]string, error) {
	root := filepath.Join(m.projectRoot, m.stateDir, branchesDir)
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var branches []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), databaseName)); err == nil {
			branches = append(branches, e.Name())
		}
	}
	sort.Strings(branches)
	return branches, nil
}

// CleanBranchCache recursively removes one branch's cache directory.
func (m *Manager) CleanBranchCache(branch string) error {
	return os.RemoveAll(m.BranchCacheDir(branch))
}

// CleanAllCaches recursively removes the entire branches directory.
func (m *Manager) CleanAllCaches() error {
	return os.RemoveAll(filepath.Join(m.projectRoot, m.stateDir, branchesDir))
}

type legacyState struct {
	Commit string            `json:"lastCommitHash"`
	Files  map[string]string `json:"indexedFiles"`
}

// MigrateLegacyState migrates a pre-branch-cache state file, if present, to
// the current (or "main", if undeterminable) branch's cache, then renames
// the legacy file to a .backup suffix. Returns whether migration ran.
func (m *Manager) MigrateLegacyState() (bool, error) {
	legacyPath := filepath.Join(m.projectRoot, legacyStateFile)
	data, err := os.ReadFile(legacyPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var legacy legacyState
	if err := json.Unmarshal(data, &legacy); err != nil {
		return false, sciperr.ErrMigrationFailure
	}

	branch, err := m.CurrentBranch()
	if err != nil || branch == "" {
		branch = "main"
	}

	if err := m.CreateBranchCache(branch); err != nil {
		return false, err
	}

	files := make([]string, 0, len(legacy.Files))
	for path := range legacy.Files {
		files = append(files, path)
	}
	sort.Strings(files)

	dbPath := m.BranchDatabasePath(branch)
	store, err := scipstore.Open(dbPath, false)
	if err != nil {
		return false, err
	}
	if err := store.SaveState(legacy.Commit, files); err != nil {
		store.Close()
		return false, err
	}
	if err := store.Close(); err != nil {
		return false, err
	}

	if err := os.Rename(legacyPath, legacyPath+".backup"); err != nil {
		return false, err
	}
	return true, nil
}

func sidecarPaths(path string) []string {
	return []string{path + "-wal", path + "-shm"}
}

func removeWithSidecars(path string) {
	os.Remove(path)
	for _, s := range sidecarPaths(path) {
		os.Remove(s)
	}
}

func copyWithSidecars(src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return err
	}
	for _, s := range sidecarPaths(src) {
		if _, err := os.Stat(s); err == nil {
			if err := copyFile(s, dst+s[len(src):]); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyFile copies src to dst via a temporary file in dst's directory,
// renamed into place atomically once the copy completes.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
