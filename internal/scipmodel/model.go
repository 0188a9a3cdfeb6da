// Package scipmodel holds the SCIP data model: symbols, occurrences,
// relationships, and the index state / metadata singletons described by
// the storage engine's schema. Documents have no type of their own here;
// an occurrence names its document by project-relative path. It has no I/O of its own —
// internal/scipstore and internal/legacyjson both build on it.
package scipmodel

// Kind is the internal symbol-kind enumeration. MapCompilerKind maps the
// compiler's kind vocabulary onto it, several compiler kinds to one Kind.
type Kind string

const (
	KindClass     Kind = "class"
	KindStruct    Kind = "struct"
	KindProtocol  Kind = "protocol"
	KindEnum      Kind = "enum"
	KindFunction  Kind = "function"
	KindProperty  Kind = "property"
	KindEnumCase  Kind = "enum-case"
	KindTypeAlias Kind = "type-alias"
	KindLocal     Kind = "local"
	KindUnknown   Kind = "unknown"
)

// IsTypeLike reports whether kind takes the '#' descriptor suffix.
func (k Kind) IsTypeLike() bool {
	switch k {
	case KindClass, KindStruct, KindProtocol, KindEnum, KindTypeAlias:
		return true
	default:
		return false
	}
}

// MapCompilerKind maps a raw compiler-reported kind string onto the
// internal Kind enumeration, per the glossary's kind-mapping table:
// instance/class/static methods and free functions -> function;
// instance/class/static properties and variables -> property;
// enum constants -> enum-case; parameters -> local; unrecognized -> unknown.
func MapCompilerKind(raw string) Kind {
	switch raw {
	case "class":
		return KindClass
	case "struct":
		return KindStruct
	case "protocol":
		return KindProtocol
	case "enum":
		return KindEnum
	case "typealias":
		return KindTypeAlias
	case "instance-method", "class-method", "static-method", "function",
		"constructor", "destructor", "conversion-function":
		return KindFunction
	case "instance-property", "class-property", "static-property", "variable",
		"global-variable", "field":
		return KindProperty
	case "enum-constant":
		return KindEnumCase
	case "parameter", "local-variable":
		return KindLocal
	default:
		return KindUnknown
	}
}

// Suffix returns the SCIP descriptor suffix token for the kind, per the
// Symbol Builder's suffix-selection rule.
func (k Kind) Suffix() string {
	switch {
	case k.IsTypeLike():
		return "#"
	case k == KindFunction:
		return "()."
	case k == KindProperty || k == KindEnumCase:
		return "."
	default:
		return ""
	}
}

// RoleMask is the 32-bit occurrence role bitmask.
type RoleMask uint32

const (
	RoleDefinition   RoleMask = 1 << 0
	RoleImport       RoleMask = 1 << 1
	RoleWriteAccess  RoleMask = 1 << 2
	RoleReadAccess   RoleMask = 1 << 3
	RoleReference             = RoleReadAccess // alias
	RoleGenerated    RoleMask = 1 << 4
	RoleTest         RoleMask = 1 << 5
)

// Has reports whether all bits in want are set in m.
func (m RoleMask) Has(want RoleMask) bool { return m&want == want }

// RelationshipKind labels a directed symbol-to-symbol edge.
type RelationshipKind string

const (
	RelConforms  RelationshipKind = "conforms"
	RelInherits  RelationshipKind = "inherits"
	RelOverrides RelationshipKind = "overrides"
)

// SourceRange is a 0-indexed, half-open source range.
type SourceRange struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// SCIP compacts the range to SCIP wire form: three integers
// [line, startCol, endCol] when the range is single-line, otherwise four
// integers [startLine, startCol, endLine, endCol].
func (r SourceRange) SCIP() []int {
	if r.StartLine == r.EndLine {
		return []int{r.StartLine, r.StartCol, r.EndCol}
	}
	return []int{r.StartLine, r.StartCol, r.EndLine, r.EndCol}
}

// Symbol is a definable named entity. Its defining document is not carried
// here — the storage engine derives it from whichever occurrence of
// SymbolID has the definition role set.
type Symbol struct {
	SymbolID      string
	Kind          Kind
	Module        string // optional
	Documentation []string
}

// Occurrence is one textual appearance of a symbol, addressed by
// project-relative path rather than a storage-assigned document id — the
// storage engine resolves the path to a document row as it writes.
type Occurrence struct {
	SymbolID          string
	Path              string
	Range             SourceRange
	Roles             RoleMask
	Snippet           string // optional, empty when absent
	HasSnippet        bool
	EnclosingSymbolID string // optional, empty when absent
	EnclosingName     string // optional, human-readable name of the enclosing symbol
}

// Relationship is a directed edge between two symbol IDs.
type Relationship struct {
	SymbolID       string
	TargetSymbolID string
	Kind           RelationshipKind
}

// IndexState is the singleton change-detection record.
type IndexState struct {
	Commit    string
	IndexedAt int64
	Files     []string
}

// Metadata is the SCIP metadata block, rewritten each full rebuild.
type Metadata struct {
	Version             int
	ToolName            string
	ToolVersion         string
	ProjectRootURI      string
	TextDocumentEncoding string
}
