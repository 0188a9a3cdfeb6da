package rawstore

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGetSymbol(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutSymbol(RawSymbol{USR: "s:1M3FooC", Name: "Foo", Kind: "class"}); err != nil {
		t.Fatalf("PutSymbol() error = %v", err)
	}
	sym, err := s.Symbol("s:1M3FooC")
	if err != nil {
		t.Fatalf("Symbol() error = %v", err)
	}
	if sym.Name != "Foo" || sym.Kind != "class" {
		t.Errorf("Symbol() = %+v", sym)
	}
}

func TestCanonicalOccurrences(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.PutOccurrence(RawOccurrence{
		USR: "s:1M3FooC", FilePath: "/proj/Foo.swift", Line: 3, Column: 7,
		Roles: 1, IsCanonical: true,
	}, nil); err != nil {
		t.Fatalf("PutOccurrence() error = %v", err)
	}
	if _, err := s.PutOccurrence(RawOccurrence{
		USR: "s:1M3BarC", FilePath: "/proj/Bar.swift", Line: 1, Column: 1,
		Roles: 8, IsCanonical: false,
	}, nil); err != nil {
		t.Fatalf("PutOccurrence() error = %v", err)
	}

	seq, err := s.CanonicalOccurrences()
	if err != nil {
		t.Fatalf("CanonicalOccurrences() error = %v", err)
	}
	var got []RawOccurrence
	for occ := range seq {
		got = append(got, occ)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 canonical occurrence, got %d", len(got))
	}
	if got[0].USR != "s:1M3FooC" {
		t.Errorf("got[0].USR = %q, want %q", got[0].USR, "s:1M3FooC")
	}
}

func TestOccurrencesForUSRAndRelations(t *testing.T) {
	s := openTestStore(t)
	id, err := s.PutOccurrence(RawOccurrence{
		USR: "s:1M6DerivedC", FilePath: "/proj/D.swift", Line: 2, Column: 1,
		Roles: 1, IsCanonical: true,
	}, []RawRelation{{Role: RoleBaseOf, TargetUSR: "s:1M4BaseC", TargetName: "Base"}})
	if err != nil {
		t.Fatalf("PutOccurrence() error = %v", err)
	}

	seq, err := s.OccurrencesForUSR("s:1M6DerivedC")
	if err != nil {
		t.Fatalf("OccurrencesForUSR() error = %v", err)
	}
	count := 0
	for range seq {
		count++
	}
	if count != 1 {
		t.Fatalf("expected 1 occurrence, got %d", count)
	}

	rels, err := s.RelationsForOccurrence(id)
	if err != nil {
		t.Fatalf("RelationsForOccurrence() error = %v", err)
	}
	if len(rels) != 1 || rels[0].Role != RoleBaseOf || rels[0].TargetUSR != "s:1M4BaseC" {
		t.Errorf("RelationsForOccurrence() = %+v", rels)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s1.PutSymbol(RawSymbol{USR: "s:1M3FooC", Name: "Foo", Kind: "class"}); err != nil {
		t.Fatalf("PutSymbol() error = %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer s2.Close()
	sym, err := s2.Symbol("s:1M3FooC")
	if err != nil {
		t.Fatalf("Symbol() error = %v", err)
	}
	if sym.Name != "Foo" {
		t.Errorf("expected data to survive reopen, got %+v", sym)
	}
}
