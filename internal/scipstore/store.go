// Package scipstore implements the Storage Engine: a durable relational
// store for symbols, occurrences, relationships, and the index state
// singleton, backed by SQLite. It supports a full-overwrite write path and
// a surgical per-file incremental path, both transaction-scoped.
package scipstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abramin/swiftscip/internal/scipmodel"
	"github.com/abramin/swiftscip/internal/sciperr"
)

// Store handles persistence of SCIP records to SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates, in read-write mode) the database at path and
// creates the schema idempotently. In read-only mode, a missing file is a
// fatal error rather than an implicit create.
func Open(path string, readOnly bool) (*Store, error) {
	dsn := path
	if readOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", sciperr.ErrOpenFailed, path)
		}
		dsn = "file:" + path + "?mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", sciperr.ErrOpenFailed, path, err)
	}

	pragmas := []string{"PRAGMA foreign_keys = ON"}
	if !readOnly {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA cache_size = -80000", // ~80MiB page cache
		)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if !readOnly {
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", sciperr.ErrSchemaCreation, err)
		}
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Write performs a full overwrite: every existing document, symbol,
// occurrence, and relationship is deleted, the metadata block is
// rewritten, and the supplied records are regrouped by file and reinserted
// in one transaction.
func (s *Store) Write(meta scipmodel.Metadata, symbols []scipmodel.Symbol, occurrences []scipmodel.Occurrence, relationships []scipmodel.Relationship) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"occurrences", "relationships", "symbols", "documents"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	if err := writeMetadata(tx, meta); err != nil {
		return err
	}

	byPath := groupOccurrencesByPath(occurrences)
	byPathSymbols := symbolsByPath(symbols, occurrences)

	docStmt, err := tx.Prepare(`INSERT INTO documents (rel_path, language, indexed_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: %v", sciperr.ErrStatementPreparation, err)
	}
	defer docStmt.Close()

	symStmt, err := tx.Prepare(`INSERT INTO symbols (symbol_id, kind, doc_json, file_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: %v", sciperr.ErrStatementPreparation, err)
	}
	defer symStmt.Close()

	occStmt, err := tx.Prepare(`
		INSERT INTO occurrences (symbol_id, file_id, start_line, start_col, end_line, end_col, roles, enclosing, snippet)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: %v", sciperr.ErrStatementPreparation, err)
	}
	defer occStmt.Close()

	for _, path := range sortedPaths(byPath) {
		res, err := docStmt.Exec(path, "swift", time.Now().Unix())
		if err != nil {
			return fmt.Errorf("%w: inserting document %s: %v", sciperr.ErrStatementExecution, path, err)
		}
		fileID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		for _, sym := range byPathSymbols[path] {
			docJSON, err := json.Marshal(sym.Documentation)
			if err != nil {
				return err
			}
			if _, err := symStmt.Exec(sym.SymbolID, string(sym.Kind), string(docJSON), fileID); err != nil {
				return fmt.Errorf("%w: inserting symbol %s: %v", sciperr.ErrStatementExecution, sym.SymbolID, err)
			}
		}

		for _, occ := range byPath[path] {
			if err := execOccurrence(occStmt, occ, fileID); err != nil {
				return err
			}
		}
	}

	relStmt, err := tx.Prepare(`INSERT INTO relationships (symbol_id, target_symbol_id, kind) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: %v", sciperr.ErrStatementPreparation, err)
	}
	defer relStmt.Close()

	for _, rel := range relationships {
		if _, err := relStmt.Exec(rel.SymbolID, rel.TargetSymbolID, string(rel.Kind)); err != nil {
			return fmt.Errorf("%w: inserting relationship: %v", sciperr.ErrStatementExecution, err)
		}
	}

	return tx.Commit()
}

// UpdateDocuments surgically replaces the named documents: each document's
// occurrences and symbols are deleted, then the document row itself, before
// reinserting from the supplied records. Documents not named in paths are
// untouched. Relationships are never touched here — a deliberate
// consistency/speed tradeoff the orchestrator's full-rebuild path exists to
// correct periodically.
func (s *Store) UpdateDocuments(paths []string, symbols []scipmodel.Symbol, occurrences []scipmodel.Occurrence) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, path := range paths {
		var fileID int64
		err := tx.QueryRow(`SELECT id FROM documents WHERE rel_path = ?`, path).Scan(&fileID)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM occurrences WHERE file_id = ?`, fileID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM symbols WHERE file_id = ?`, fileID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, fileID); err != nil {
			return err
		}
	}

	byPath := groupOccurrencesByPath(occurrences)
	byPathSymbols := symbolsByPath(symbols, occurrences)

	docStmt, err := tx.Prepare(`INSERT INTO documents (rel_path, language, indexed_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: %v", sciperr.ErrStatementPreparation, err)
	}
	defer docStmt.Close()

	symStmt, err := tx.Prepare(`INSERT INTO symbols (symbol_id, kind, doc_json, file_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: %v", sciperr.ErrStatementPreparation, err)
	}
	defer symStmt.Close()

	occStmt, err := tx.Prepare(`
		INSERT INTO occurrences (symbol_id, file_id, start_line, start_col, end_line, end_col, roles, enclosing, snippet)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: %v", sciperr.ErrStatementPreparation, err)
	}
	defer occStmt.Close()

	for _, path := range paths {
		occs, ok := byPath[path]
		if !ok {
			continue
		}
		res, err := docStmt.Exec(path, "swift", time.Now().Unix())
		if err != nil {
			return fmt.Errorf("%w: inserting document %s: %v", sciperr.ErrStatementExecution, path, err)
		}
		fileID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		for _, sym := range byPathSymbols[path] {
			docJSON, err := json.Marshal(sym.Documentation)
			if err != nil {
				return err
			}
			if _, err := symStmt.Exec(sym.SymbolID, string(sym.Kind), string(docJSON), fileID); err != nil {
				return fmt.Errorf("%w: inserting symbol %s: %v", sciperr.ErrStatementExecution, sym.SymbolID, err)
			}
		}

		for _, occ := range occs {
			if err := execOccurrence(occStmt, occ, fileID); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeleteDocuments removes the named documents; their symbols and
// occurrences cascade.
func (s *Store) DeleteDocuments(paths []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`DELETE FROM documents WHERE rel_path = ?`)
	if err != nil {
		return fmt.Errorf("%w: %v", sciperr.ErrStatementPreparation, err)
	}
	defer stmt.Close()

	for _, path := range paths {
		if _, err := stmt.Exec(path); err != nil {
			return fmt.Errorf("%w: deleting document %s: %v", sciperr.ErrStatementExecution, path, err)
		}
	}
	return tx.Commit()
}

// SaveState atomically replaces the single Index State row.
func (s *Store) SaveState(commit string, files []string) error {
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM index_state`); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO index_state (commit_hash, ts, files_json) VALUES (?, ?, ?)`,
		commit, time.Now().Unix(), string(filesJSON),
	); err != nil {
		return fmt.Errorf("%w: %v", sciperr.ErrStatementExecution, err)
	}
	return tx.Commit()
}

// LoadState returns the Index State row, or ok=false if none exists.
func (s *Store) LoadState() (State, bool, error) {
	var st State
	var filesJSON string
	err := s.db.QueryRow(`SELECT commit_hash, ts, files_json FROM index_state LIMIT 1`).Scan(&st.Commit, &st.TS, &filesJSON)
	if err == sql.ErrNoRows {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	if err := json.Unmarshal([]byte(filesJSON), &st.Files); err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

// GetIndexedFilePaths enumerates document paths in sorted order.
func (s *Store) GetIndexedFilePaths() ([]string, error) {
	rows, err := s.db.Query(`SELECT rel_path FROM documents ORDER BY rel_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func writeMetadata(tx *sql.Tx, meta scipmodel.Metadata) error {
	kv := map[string]string{
		"version":                fmt.Sprintf("%d", meta.Version),
		"tool_name":              meta.ToolName,
		"tool_version":           meta.ToolVersion,
		"project_root_uri":       meta.ProjectRootURI,
		"text_document_encoding": meta.TextDocumentEncoding,
	}
	stmt, err := tx.Prepare(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`)
	if err != nil {
		return fmt.Errorf("%w: %v", sciperr.ErrStatementPreparation, err)
	}
	defer stmt.Close()
	for k, v := range kv {
		if _, err := stmt.Exec(k, v); err != nil {
			return fmt.Errorf("%w: writing metadata %s: %v", sciperr.ErrStatementExecution, k, err)
		}
	}
	return nil
}

func execOccurrence(stmt *sql.Stmt, occ scipmodel.Occurrence, fileID int64) error {
	var snippet sql.NullString
	if occ.HasSnippet {
		snippet = sql.NullString{String: occ.Snippet, Valid: true}
	}
	var enclosing sql.NullString
	if occ.EnclosingSymbolID != "" {
		enclosing = sql.NullString{String: occ.EnclosingSymbolID, Valid: true}
	}
	_, err := stmt.Exec(
		occ.SymbolID, fileID,
		occ.Range.StartLine, occ.Range.StartCol, occ.Range.EndLine, occ.Range.EndCol,
		uint32(occ.Roles), enclosing, snippet,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting occurrence for %s: %v", sciperr.ErrStatementExecution, occ.SymbolID, err)
	}
	return nil
}

func groupOccurrencesByPath(occurrences []scipmodel.Occurrence) map[string][]scipmodel.Occurrence {
	byPath := make(map[string][]scipmodel.Occurrence)
	for _, occ := range occurrences {
		byPath[occ.Path] = append(byPath[occ.Path], occ)
	}
	return byPath
}

// symbolsByPath returns, for each path, the subset of symbols whose
// symbol-ID appears as a definition-role occurrence in that path — the
// invariant that a symbol's defining document is exactly the document
// holding its definition occurrence.
func symbolsByPath(symbols []scipmodel.Symbol, occurrences []scipmodel.Occurrence) map[string][]scipmodel.Symbol {
	definingPath := make(map[string]string, len(occurrences))
	for _, occ := range occurrences {
		if occ.Roles.Has(scipmodel.RoleDefinition) {
			definingPath[occ.SymbolID] = occ.Path
		}
	}
	byPath := make(map[string][]scipmodel.Symbol)
	for _, sym := range symbols {
		path, ok := definingPath[sym.SymbolID]
		if !ok {
			continue
		}
		byPath[path] = append(byPath[path], sym)
	}
	return byPath
}

func sortedPaths(byPath map[string][]scipmodel.Occurrence) []string {
	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
