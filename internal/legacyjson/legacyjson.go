// Package legacyjson implements the legacy JSON emitter: a single
// self-contained document used when the relational back-end is skipped
// ("legacy mode", e.g. outside a git repository or when --json is
// passed). Documents are sorted by relative path and each document's
// symbols by symbol ID. Object keys are not sorted: they are written in
// the fixed order of the struct fields below.
package legacyjson

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/abramin/swiftscip/internal/scipmodel"
)

type metadataJSON struct {
	Version              int          `json:"version"`
	ToolInfo             toolInfoJSON `json:"toolInfo"`
	ProjectRoot          string       `json:"projectRoot"`
	TextDocumentEncoding string       `json:"textDocumentEncoding"`
}

type toolInfoJSON struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type documentJSON struct {
	RelativePath string           `json:"relativePath"`
	Language     string           `json:"language"`
	Symbols      []symbolJSON     `json:"symbols"`
	Occurrences  []occurrenceJSON `json:"occurrences"`
}

type symbolJSON struct {
	Symbol        string             `json:"symbol"`
	Kind          string             `json:"kind"`
	Documentation []string           `json:"documentation,omitempty"`
	Relationships []relationshipJSON `json:"relationships,omitempty"`
}

type relationshipJSON struct {
	Symbol           string `json:"symbol"`
	IsImplementation bool   `json:"isImplementation,omitempty"`
	IsTypeDefinition bool   `json:"isTypeDefinition,omitempty"`
}

type occurrenceJSON struct {
	Symbol          string `json:"symbol"`
	Range           []int  `json:"range"`
	SymbolRoles     uint32 `json:"symbolRoles"`
	EnclosingSymbol string `json:"enclosingSymbol,omitempty"`
	Snippet         string `json:"snippet,omitempty"`
}

type indexJSON struct {
	Metadata  metadataJSON   `json:"metadata"`
	Documents []documentJSON `json:"documents"`
}

// Document groups one file's symbols and occurrences for emission.
type Document struct {
	Path        string
	Symbols     []scipmodel.Symbol
	Occurrences []scipmodel.Occurrence
}

// Encode writes the legacy JSON index document to w: one top-level object
// with a metadata block and a documents array, sorted by relative path,
// each document's symbols carrying any relationships that name them as
// source.
func Encode(w io.Writer, meta scipmodel.Metadata, docs []Document, relationships []scipmodel.Relationship) error {
	relsBySymbol := make(map[string][]scipmodel.Relationship, len(relationships))
	for _, rel := range relationships {
		relsBySymbol[rel.SymbolID] = append(relsBySymbol[rel.SymbolID], rel)
	}

	sorted := make([]Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	out := indexJSON{
		Metadata: metadataJSON{
			Version:              meta.Version,
			ToolInfo:             toolInfoJSON{Name: meta.ToolName, Version: meta.ToolVersion},
			ProjectRoot:          meta.ProjectRootURI,
			TextDocumentEncoding: meta.TextDocumentEncoding,
		},
	}

	for _, doc := range sorted {
		symbols := make([]symbolJSON, 0, len(doc.Symbols))
		for _, sym := range doc.Symbols {
			symbols = append(symbols, symbolJSON{
				Symbol:        sym.SymbolID,
				Kind:          string(sym.Kind),
				Documentation: sym.Documentation,
				Relationships: relationshipsJSON(relsBySymbol[sym.SymbolID]),
			})
		}
		sort.Slice(symbols, func(i, j int) bool { return symbols[i].Symbol < symbols[j].Symbol })

		occurrences := make([]occurrenceJSON, 0, len(doc.Occurrences))
		for _, occ := range doc.Occurrences {
			occurrences = append(occurrences, occurrenceJSON{
				Symbol:          occ.SymbolID,
				Range:           occ.Range.SCIP(),
				SymbolRoles:     uint32(occ.Roles),
				EnclosingSymbol: occ.EnclosingSymbolID,
				Snippet:         occ.Snippet,
			})
		}

		out.Documents = append(out.Documents, documentJSON{
			RelativePath: doc.Path,
			Language:     "swift",
			Symbols:      symbols,
			Occurrences:  occurrences,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding legacy index json: %w", err)
	}
	return nil
}

func relationshipsJSON(rels []scipmodel.Relationship) []relationshipJSON {
	if len(rels) == 0 {
		return nil
	}
	out := make([]relationshipJSON, 0, len(rels))
	for _, rel := range rels {
		out = append(out, relationshipJSON{
			Symbol:           rel.TargetSymbolID,
			IsImplementation: rel.Kind == scipmodel.RelConforms || rel.Kind == scipmodel.RelOverrides,
			IsTypeDefinition: rel.Kind == scipmodel.RelInherits,
		})
	}
	return out
}
