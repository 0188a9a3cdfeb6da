// Package rawstore is a from-scratch, sqlite-backed stand-in for the
// compiler's on-disk index store (what libIndexStore would expose over
// cgo in a real deployment). It models the same shape the Index-Store
// Reader needs: a units table keyed by USR, an occurrences table holding
// every role an occurrence can carry, and a relations table giving each
// occurrence its base-of / override-of / child-of edges.
//
// internal/indexstore.Reader holds a *Store from this package directly;
// there is no interface between the two, so a different backend would
// need to replace this type.
package rawstore

import (
	"database/sql"
	"fmt"
	"iter"

	_ "modernc.org/sqlite"
)

// Relation roles, as the compiler's index store would label them.
const (
	RoleBaseOf     = "base-of"
	RoleOverrideOf = "override-of"
	RoleChildOf    = "child-of"
)

// RawSymbol is a canonical symbol record: one row per USR.
type RawSymbol struct {
	USR  string
	Name string
	Kind string
}

// RawRelation is one edge attached to an occurrence.
type RawRelation struct {
	Role       string
	TargetUSR  string
	TargetName string
}

// RawOccurrence is one textual appearance of a USR, at any role.
type RawOccurrence struct {
	ID          int64
	USR         string
	FilePath    string
	Line        int
	Column      int
	Roles       uint32
	IsCanonical bool
}

// Store is a handle onto the raw index-store database.
type Store struct {
	db      *sql.DB
	lastErr error
}

// Open opens the raw store at path. The real deployment's store already
// exists on disk (written by the compiler); Open never creates the schema
// destructively — it's idempotent, matching how a read path would treat an
// existing store, and lets tests build fixtures with the same handle.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening raw index store: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating raw store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Err returns the last error encountered while ranging over a sequence
// returned by CanonicalOccurrences or OccurrencesForUSR. Call it after the
// range completes; a scan failure silently stops the sequence rather than
// panicking mid-iteration.
func (s *Store) Err() error {
	return s.lastErr
}

// Symbol looks up the canonical (usr, name, kind) record.
func (s *Store) Symbol(usr string) (RawSymbol, error) {
	var sym RawSymbol
	sym.USR = usr
	err := s.db.QueryRow(`SELECT name, kind FROM units WHERE usr = ?`, usr).Scan(&sym.Name, &sym.Kind)
	return sym, err
}

// CanonicalOccurrences returns a lazy, single-pass sequence over every
// occurrence marked canonical — the compiler's stand-in for "this
// occurrence represents the symbol itself". This is the boundary wrap the
// design notes call for: callers range over it with no further exposure to
// the underlying callback/cursor shape.
func (s *Store) CanonicalOccurrences() (iter.Seq[RawOccurrence], error) {
	rows, err := s.db.Query(`
		SELECT id, usr, file_path, line, column, roles, is_canonical
		FROM occurrences WHERE is_canonical = 1 ORDER BY usr
	`)
	if err != nil {
		return nil, fmt.Errorf("querying canonical occurrences: %w", err)
	}
	s.lastErr = nil
	return func(yield func(RawOccurrence) bool) {
		defer rows.Close()
		for rows.Next() {
			occ, err := scanOccurrence(rows)
			if err != nil {
				s.lastErr = err
				return
			}
			if !yield(occ) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			s.lastErr = err
		}
	}, nil
}

// OccurrencesForUSR returns every occurrence of usr, at any role, ordered
// by file then line then column for deterministic output.
func (s *Store) OccurrencesForUSR(usr string) (iter.Seq[RawOccurrence], error) {
	rows, err := s.db.Query(`
		SELECT id, usr, file_path, line, column, roles, is_canonical
		FROM occurrences WHERE usr = ? ORDER BY file_path, line, column
	`, usr)
	if err != nil {
		return nil, fmt.Errorf("querying occurrences for %s: %w", usr, err)
	}
	s.lastErr = nil
	return func(yield func(RawOccurrence) bool) {
		defer rows.Close()
		for rows.Next() {
			occ, err := scanOccurrence(rows)
			if err != nil {
				s.lastErr = err
				return
			}
			if !yield(occ) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			s.lastErr = err
		}
	}, nil
}

func scanOccurrence(rows *sql.Rows) (RawOccurrence, error) {
	var occ RawOccurrence
	var canonical int
	if err := rows.Scan(&occ.ID, &occ.USR, &occ.FilePath, &occ.Line, &occ.Column, &occ.Roles, &canonical); err != nil {
		return RawOccurrence{}, err
	}
	occ.IsCanonical = canonical != 0
	return occ, nil
}

// CanonicalOccurrenceForUSR returns the single canonical occurrence for a
// USR, if one exists. Used to resolve a symbol's lexical container from its
// own child-of relation, the same way an occurrence's enclosing symbol is
// resolved.
func (s *Store) CanonicalOccurrenceForUSR(usr string) (RawOccurrence, bool, error) {
	row := s.db.QueryRow(`
		SELECT id, usr, file_path, line, column, roles, is_canonical
		FROM occurrences WHERE usr = ? AND is_canonical = 1 LIMIT 1
	`, usr)
	var occ RawOccurrence
	var canonical int
	err := row.Scan(&occ.ID, &occ.USR, &occ.FilePath, &occ.Line, &occ.Column, &occ.Roles, &canonical)
	if err == sql.ErrNoRows {
		return RawOccurrence{}, false, nil
	}
	if err != nil {
		return RawOccurrence{}, false, err
	}
	occ.IsCanonical = canonical != 0
	return occ, true, nil
}

// RelationsForOccurrence returns every relation attached to an occurrence.
func (s *Store) RelationsForOccurrence(occurrenceID int64) ([]RawRelation, error) {
	rows, err := s.db.Query(`
		SELECT role, target_usr, target_name FROM relations WHERE occurrence_id = ? ORDER BY id
	`, occurrenceID)
	if err != nil {
		return nil, fmt.Errorf("querying relations for occurrence %d: %w", occurrenceID, err)
	}
	defer rows.Close()

	var rels []RawRelation
	for rows.Next() {
		var r RawRelation
		if err := rows.Scan(&r.Role, &r.TargetUSR, &r.TargetName); err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// --- fixture-building helpers, used by tests to populate a raw store the
// way the compiler would. Not used by the read path.

// PutSymbol inserts or replaces a canonical symbol record.
func (s *Store) PutSymbol(sym RawSymbol) error {
	_, err := s.db.Exec(`
		INSERT INTO units (usr, name, kind) VALUES (?, ?, ?)
		ON CONFLICT(usr) DO UPDATE SET name = excluded.name, kind = excluded.kind
	`, sym.USR, sym.Name, sym.Kind)
	return err
}

// PutOccurrence inserts an occurrence and its relations, returning the
// occurrence's assigned id.
func (s *Store) PutOccurrence(occ RawOccurrence, rels []RawRelation) (int64, error) {
	canonical := 0
	if occ.IsCanonical {
		canonical = 1
	}
	res, err := s.db.Exec(`
		INSERT INTO occurrences (usr, file_path, line, column, roles, is_canonical)
		VALUES (?, ?, ?, ?, ?, ?)
	`, occ.USR, occ.FilePath, occ.Line, occ.Column, occ.Roles, canonical)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, r := range rels {
		if _, err := s.db.Exec(`
			INSERT INTO relations (occurrence_id, role, target_usr, target_name)
			VALUES (?, ?, ?, ?)
		`, id, r.Role, r.TargetUSR, r.TargetName); err != nil {
			return id, err
		}
	}
	return id, nil
}
