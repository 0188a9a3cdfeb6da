// Package indexstore implements the Index-Store Reader: it walks the
// compiler-emitted raw index store and produces normalized symbol,
// occurrence, and relationship records ready for the storage engine.
package indexstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abramin/swiftscip/internal/indexstore/rawstore"
	"github.com/abramin/swiftscip/internal/scipmodel"
	"github.com/abramin/swiftscip/internal/sciperr"
	"github.com/abramin/swiftscip/internal/snippet"
	"github.com/abramin/swiftscip/internal/symbolid"
)

// Options configures a Reader.
type Options struct {
	// DerivedDataRoot is the build-output directory tree hosting the
	// index store under one of DataStoreCandidates.
	DerivedDataRoot string
	// ProjectRoot is stripped from absolute occurrence paths to produce
	// project-relative Document.Path values.
	ProjectRoot string
	// IncludeSnippets turns on one-line snippet extraction.
	IncludeSnippets bool
	// SourceExtension is the file extension kept by occurrence filtering,
	// e.g. ".swift". Paths with any other extension are dropped.
	SourceExtension string
	// DataStoreCandidates lists candidate data-store directories to probe,
	// in preference order. Entries may be absolute (as returned by
	// config.Config.DataStoreCandidatePaths) or relative to
	// DerivedDataRoot. Defaults to the standard Xcode layout
	// (Index.noindex/DataStore, then Index/DataStore) when empty.
	DataStoreCandidates []string
}

func (o Options) candidatePaths() []string {
	candidates := o.DataStoreCandidates
	if len(candidates) == 0 {
		candidates = []string{"Index.noindex/DataStore", "Index/DataStore"}
	}
	paths := make([]string, len(candidates))
	for i, c := range candidates {
		if filepath.IsAbs(c) {
			paths[i] = c
		} else {
			paths[i] = filepath.Join(o.DerivedDataRoot, c)
		}
	}
	return paths
}

// Reader iterates a raw index store and produces SCIP-ready records.
type Reader struct {
	raw             *rawstore.Store
	projectRoot     string
	includeSnippets bool
	sourceExtension string
	snippets        *snippet.Extractor
	symbolIDCache   map[string]string // usr -> built symbol-id, per run
}

// Open locates the index store under opts.DerivedDataRoot, preferring
// Index.noindex/DataStore (newer toolchains) over Index/DataStore, and
// opens it. Returns a wrapped sciperr.ErrIndexStoreNotFound if neither
// layout exists.
func Open(opts Options) (*Reader, error) {
	dataStoreDir, err := discoverDataStore(opts.candidatePaths())
	if err != nil {
		return nil, err
	}

	raw, err := rawstore.Open(filepath.Join(dataStoreDir, "store.db"))
	if err != nil {
		return nil, fmt.Errorf("opening index store at %s: %w", dataStoreDir, err)
	}

	ext := opts.SourceExtension
	if ext == "" {
		ext = ".swift"
	}

	return &Reader{
		raw:             raw,
		projectRoot:     opts.ProjectRoot,
		includeSnippets: opts.IncludeSnippets,
		sourceExtension: ext,
		snippets:        snippet.New(),
		symbolIDCache:   make(map[string]string),
	}, nil
}

// Close releases the underlying raw store handle.
func (r *Reader) Close() error {
	return r.raw.Close()
}

func discoverDataStore(candidates []string) (string, error) {
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: searched %s", sciperr.ErrIndexStoreNotFound, strings.Join(candidates, ", "))
}

// CollectSymbols walks every canonical occurrence, deduplicated by USR
// (only the first canonical occurrence of a USR is used), maps the
// compiler kind to the internal kind enumeration, attempts to extract a
// module name from the
// USR, and builds each symbol's SCIP symbol-ID. Inline relationships are
// collected from each canonical occurrence's base-of/override-of relations
// at the same time, since the raw store attaches relations per occurrence.
func (r *Reader) CollectSymbols() ([]scipmodel.Symbol, []scipmodel.Relationship, error) {
	seq, err := r.raw.CanonicalOccurrences()
	if err != nil {
		return nil, nil, fmt.Errorf("collecting symbols: %w", err)
	}

	var symbols []scipmodel.Symbol
	var relationships []scipmodel.Relationship
	seen := make(map[string]bool)

	for occ := range seq {
		if seen[occ.USR] {
			continue
		}
		seen[occ.USR] = true

		sym, err := r.raw.Symbol(occ.USR)
		if err != nil {
			return nil, nil, fmt.Errorf("looking up symbol %s: %w", occ.USR, err)
		}

		kind := scipmodel.MapCompilerKind(sym.Kind)
		module, _ := symbolid.ParseModule(occ.USR)

		rels, err := r.raw.RelationsForOccurrence(occ.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("collecting relations for %s: %w", occ.USR, err)
		}

		container := containerName(rels)
		symbolID := symbolid.Build(occ.USR, sym.Name, kind, module, container)
		r.symbolIDCache[occ.USR] = symbolID

		symbols = append(symbols, scipmodel.Symbol{
			SymbolID: symbolID,
			Kind:     kind,
			Module:   module,
		})

		for _, rel := range rels {
			// The raw store's relation rows don't carry the target's
			// kind, only its USR and name; base-of/override-of targets
			// are always type-like in practice (a superclass or
			// protocol), so KindClass picks the right '#' suffix.
			targetModule, _ := symbolid.ParseModule(rel.TargetUSR)
			targetID := symbolid.Build(rel.TargetUSR, rel.TargetName, scipmodel.KindClass, targetModule, "")
			switch rel.Role {
			case rawstore.RoleBaseOf:
				relationships = append(relationships, scipmodel.Relationship{
					SymbolID: symbolID, TargetSymbolID: targetID, Kind: scipmodel.RelInherits,
				})
			case rawstore.RoleOverrideOf:
				relationships = append(relationships, scipmodel.Relationship{
					SymbolID: symbolID, TargetSymbolID: targetID, Kind: scipmodel.RelOverrides,
				})
			}
		}
	}

	if err := r.raw.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating canonical occurrences: %w", err)
	}

	return symbols, relationships, nil
}

// CollectRelationships returns only the relationship set. It runs a full
// CollectSymbols pass and discards the symbols, so it costs the same as
// CollectSymbols.
func (r *Reader) CollectRelationships() ([]scipmodel.Relationship, error) {
	_, rels, err := r.CollectSymbols()
	return rels, err
}

// CollectOccurrences performs a two-pass occurrence walk: first gather the
// live USR set from canonical occurrences, then for each USR enumerate
// every occurrence at any role. whitelist, when non-nil, restricts output
// to those project-relative paths; nil means "all files".
func (r *Reader) CollectOccurrences(whitelist []string) ([]scipmodel.Occurrence, error) {
	var allow map[string]bool
	if whitelist != nil {
		allow = make(map[string]bool, len(whitelist))
		for _, p := range whitelist {
			allow[p] = true
		}
	}

	usrs, err := r.liveUSRs()
	if err != nil {
		return nil, err
	}

	var out []scipmodel.Occurrence
	for _, usr := range usrs {
		occs, err := r.occurrencesForUSR(usr, allow)
		if err != nil {
			// Per-USR failures during occurrence enumeration are skipped,
			// never fatal.
			continue
		}
		out = append(out, occs...)
	}
	return out, nil
}

func (r *Reader) liveUSRs() ([]string, error) {
	seq, err := r.raw.CanonicalOccurrences()
	if err != nil {
		return nil, fmt.Errorf("collecting live USRs: %w", err)
	}
	var usrs []string
	seen := make(map[string]bool)
	for occ := range seq {
		if !seen[occ.USR] {
			seen[occ.USR] = true
			usrs = append(usrs, occ.USR)
		}
	}
	if err := r.raw.Err(); err != nil {
		return nil, fmt.Errorf("iterating canonical occurrences: %w", err)
	}
	return usrs, nil
}

func (r *Reader) occurrencesForUSR(usr string, allow map[string]bool) ([]scipmodel.Occurrence, error) {
	seq, err := r.raw.OccurrencesForUSR(usr)
	if err != nil {
		return nil, err
	}

	var out []scipmodel.Occurrence
	for raw := range seq {
		path := r.relativize(raw.FilePath)
		if !strings.HasSuffix(path, r.sourceExtension) {
			continue
		}
		if allow != nil && !allow[path] {
			continue
		}

		rels, err := r.raw.RelationsForOccurrence(raw.ID)
		if err != nil {
			return nil, err
		}

		sym, err := r.raw.Symbol(usr)
		if err != nil {
			return nil, err
		}

		symbolID, err := r.symbolIDForUSR(usr, sym)
		if err != nil {
			return nil, err
		}

		occ := scipmodel.Occurrence{
			SymbolID: symbolID,
			Path:     path,
			Range:    approximateRange(raw.Line, raw.Column, sym.Name),
			Roles:    scipmodel.RoleMask(raw.Roles),
		}

		for _, rel := range rels {
			if rel.Role == rawstore.RoleChildOf {
				targetModule, _ := symbolid.ParseModule(rel.TargetUSR)
				occ.EnclosingSymbolID = symbolid.Build(rel.TargetUSR, rel.TargetName, scipmodel.KindClass, targetModule, "")
				occ.EnclosingName = rel.TargetName
				break
			}
		}

		if r.includeSnippets {
			if line, ok := r.snippets.Line(raw.FilePath, raw.Line); ok {
				occ.Snippet = line
				occ.HasSnippet = true
			}
		}

		out = append(out, occ)
	}
	if err := r.raw.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// containerName picks a symbol's lexical container name out of its own
// canonical occurrence's relations, mirroring how an occurrence's
// enclosing symbol is resolved from a child-of relation.
func containerName(rels []rawstore.RawRelation) string {
	for _, rel := range rels {
		if rel.Role == rawstore.RoleChildOf {
			return rel.TargetName
		}
	}
	return ""
}

// symbolIDForUSR builds (and caches, per run) the symbol-ID for usr,
// resolving its container from its canonical occurrence's child-of
// relation so that every occurrence of a USR — canonical or not — gets the
// same symbol-ID CollectSymbols assigned it.
func (r *Reader) symbolIDForUSR(usr string, sym rawstore.RawSymbol) (string, error) {
	if id, ok := r.symbolIDCache[usr]; ok {
		return id, nil
	}

	kind := scipmodel.MapCompilerKind(sym.Kind)
	module, _ := symbolid.ParseModule(usr)

	var container string
	if canon, ok, err := r.raw.CanonicalOccurrenceForUSR(usr); err != nil {
		return "", err
	} else if ok {
		rels, err := r.raw.RelationsForOccurrence(canon.ID)
		if err != nil {
			return "", err
		}
		container = containerName(rels)
	}

	id := symbolid.Build(usr, sym.Name, kind, module, container)
	r.symbolIDCache[usr] = id
	return id, nil
}

// relativize strips the project root prefix from an absolute path.
// Occurrences outside the project root are kept with their absolute path
// — callers decide policy.
func (r *Reader) relativize(path string) string {
	if r.projectRoot == "" {
		return path
	}
	rel, err := filepath.Rel(r.projectRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// approximateRange converts the store's 1-indexed line and UTF-8 column
// into a 0-indexed point range whose end column is approximated as
// start + the identifier's UTF-8 byte length — the store records only a
// point, and the name's byte length is the best available length proxy
// (see the design notes' open question on range endpoints).
func approximateRange(line, column int, name string) scipmodel.SourceRange {
	startLine := line - 1
	startCol := column - 1
	endCol := startCol + len(name)
	return scipmodel.SourceRange{
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   startLine,
		EndCol:    endCol,
	}
}
