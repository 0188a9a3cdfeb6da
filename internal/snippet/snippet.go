// Package snippet reads a single source line for an occurrence's inline
// preview. It is deliberately outside the core: the storage engine and
// reader treat a snippet as an optional string, never as something whose
// absence is an error.
package snippet

import (
	"bufio"
	"os"
)

// Extractor is a per-run cached line reader. It is owned by whoever
// constructs it (the index-store Reader) and dropped at the end of the
// run — no package-level state survives across runs or across projects.
type Extractor struct {
	lines map[string][]string // file path -> 0-indexed lines, loaded lazily
}

// New creates an Extractor with an empty cache.
func New() *Extractor {
	return &Extractor{lines: make(map[string][]string)}
}

// Line returns the 1-indexed source line for path, and whether it could be
// read. It never returns an error: a missing file, an out-of-range line
// number, or a read failure all just yield ("", false).
func (e *Extractor) Line(path string, line int) (string, bool) {
	if line <= 0 {
		return "", false
	}

	lines, ok := e.lines[path]
	if !ok {
		lines = readLines(path)
		e.lines[path] = lines
	}

	idx := line - 1
	if idx < 0 || idx >= len(lines) {
		return "", false
	}
	return lines[idx], true
}

// readLines reads path line-by-line, returning nil on any failure. A nil
// slice is cached the same as an empty one, so a missing file is only
// stat'd once per run.
func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}
