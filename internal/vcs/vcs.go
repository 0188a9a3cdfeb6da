// Package vcs implements the VCS State Tracker: it shells out to git to
// compute changed and deleted file sets, detect the current branch, and
// detect working-tree dirtiness. All commands use machine-readable flags
// and discard stderr.
package vcs

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/abramin/swiftscip/internal/sciperr"
)

// StateReader reads a branch's recorded Index State commit, letting
// ChangedFilesForBranch compare against it without this package importing
// internal/branchcache (which itself depends on vcs for CurrentBranch).
type StateReader interface {
	// BranchCommit returns the commit hash recorded the last time branch
	// was indexed, and ok=false if no cache exists for it.
	BranchCommit(branch string) (commit string, ok bool, err error)
}

// Tracker runs git commands rooted at projectRoot, restricting changed/
// deleted file results to paths ending in sourceExtension.
type Tracker struct {
	projectRoot     string
	sourceExtension string
}

// New constructs a Tracker.
func New(projectRoot, sourceExtension string) *Tracker {
	return &Tracker{projectRoot: projectRoot, sourceExtension: sourceExtension}
}

// IsRepository reports whether the project root is a git working tree.
func (t *Tracker) IsRepository() bool {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = t.projectRoot
	return cmd.Run() == nil
}

// CurrentCommitHash returns the current HEAD commit hash.
func (t *Tracker) CurrentCommitHash() (string, error) {
	out, err := t.run("rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("%w: %v", sciperr.ErrNotAGitRepository, err)
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranchName returns the working tree's current branch name,
// unsanitized. Used by the Branch Cache Manager to derive its sanitized
// cache-directory name.
func (t *Tracker) CurrentBranchName() (string, error) {
	out, err := t.run("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("%w: %v", sciperr.ErrNotAGitRepository, err)
	}
	return strings.TrimSpace(out), nil
}

// ChangedFilesSince returns files that differ between commit and HEAD,
// restricted to sourceExtension, unioned with working-tree changes and
// deduplicated.
func (t *Tracker) ChangedFilesSince(commit string) ([]string, error) {
	out, err := t.run("diff", "--name-only", commit, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("git diff --name-only %s HEAD: %w", commit, err)
	}
	committed := filterExtension(splitLines(out), t.sourceExtension)

	working, err := t.WorkingTreeChanges()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(committed)+len(working))
	var merged []string
	for _, f := range committed {
		if !seen[f] {
			seen[f] = true
			merged = append(merged, f)
		}
	}
	for _, f := range working {
		if !seen[f] && strings.HasSuffix(f, t.sourceExtension) {
			seen[f] = true
			merged = append(merged, f)
		}
	}
	return merged, nil
}

// DeletedFilesSince returns files deleted between commit and HEAD,
// restricted to sourceExtension.
func (t *Tracker) DeletedFilesSince(commit string) ([]string, error) {
	out, err := t.run("diff", "--name-only", "--diff-filter=D", commit, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("git diff --diff-filter=D %s HEAD: %w", commit, err)
	}
	return filterExtension(splitLines(out), t.sourceExtension), nil
}

// WorkingTreeChanges returns every path with an uncommitted change,
// parsed from porcelain status output. Rename entries ("old -> new")
// contribute the new path.
func (t *Tracker) WorkingTreeChanges() ([]string, error) {
	out, err := t.run("status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status --porcelain: %w", err)
	}

	var changed []string
	for _, line := range splitLines(out) {
		if len(line) < 4 {
			continue
		}
		rest := strings.TrimSpace(line[3:])
		if idx := strings.Index(rest, " -> "); idx != -1 {
			rest = rest[idx+len(" -> "):]
		}
		changed = append(changed, rest)
	}
	return changed, nil
}

// ChangedFilesForBranch loads branch's recorded commit via reader and
// compares it to the current commit: equal ⇒ only working-tree changes;
// different ⇒ the full diff-since-commit set. ok is false when no branch
// state exists at all, signalling "full rebuild required".
func (t *Tracker) ChangedFilesForBranch(branch string, reader StateReader) (files []string, ok bool, err error) {
	recordedCommit, hasState, err := reader.BranchCommit(branch)
	if err != nil {
		return nil, false, err
	}
	if !hasState {
		return nil, false, nil
	}

	current, err := t.CurrentCommitHash()
	if err != nil {
		return nil, false, err
	}

	if current == recordedCommit {
		working, err := t.WorkingTreeChanges()
		if err != nil {
			return nil, false, err
		}
		return filterExtension(working, t.sourceExtension), true, nil
	}

	changed, err := t.ChangedFilesSince(recordedCommit)
	if err != nil {
		return nil, false, err
	}
	return changed, true, nil
}

func (t *Tracker) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = t.projectRoot
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stdout.String(), nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func filterExtension(paths []string, ext string) []string {
	var out []string
	for _, p := range paths {
		if strings.HasSuffix(p, ext) {
			out = append(out, p)
		}
	}
	return out
}
