package scipstore

import "github.com/abramin/swiftscip/internal/scipmodel"

// DocumentID is a type-safe identifier for a document row.
type DocumentID int64

// Document groups the symbols and occurrences the Storage Engine writes
// for a single project-relative source path.
type Document struct {
	Path        string
	Language    string
	Symbols     []scipmodel.Symbol
	Occurrences []scipmodel.Occurrence
}

// State is the Index State singleton.
type State struct {
	Commit string
	TS     int64
	Files  []string
}
