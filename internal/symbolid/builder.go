// Package symbolid derives SCIP symbol-ID strings from compiler-emitted
// USR strings. Build is a pure function: fixed inputs always produce the
// same string, which is the invariant the storage engine relies on to
// detect that reindexing an unchanged file changed nothing.
package symbolid

import (
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/abramin/swiftscip/internal/scipmodel"
)

// swiftUSRPrefix is the compiler's marker for a mangled Swift USR.
const swiftUSRPrefix = "s:"

// Build derives a SCIP symbol-ID string from (usr, name, kind, module,
// container). module and container are optional; pass "" when absent.
//
// Algorithm:
//  1. Local gate: if usr doesn't start with "s:" or module is "", return a
//     local ID.
//  2. Suffix selection by kind.
//  3. Descriptor assembly: "<container>#<name><suffix>" or "<name><suffix>".
//  4. Final form: "swift <module> <descriptor>".
func Build(usr, name string, kind scipmodel.Kind, module, container string) string {
	if !hasSwiftPrefix(usr) || module == "" {
		return localID(usr)
	}

	suffix := kind.Suffix()

	var descriptor string
	if container != "" {
		descriptor = container + "#" + name + suffix
	} else {
		descriptor = name + suffix
	}

	return "swift " + module + " " + descriptor
}

func hasSwiftPrefix(usr string) bool {
	return len(usr) >= len(swiftUSRPrefix) && usr[:len(swiftUSRPrefix)] == swiftUSRPrefix
}

// localID synthesizes a local symbol-ID: the literal token "local"
// followed by a stable, non-negative decimal fingerprint of usr.
//
// The fingerprint is 64-bit FNV-1a over the USR bytes, not a runtime
// string hash — FNV-1a is reproducible across processes and Go versions,
// which a language-runtime string hash is not guaranteed to be.
func localID(usr string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(usr))
	return "local " + strconv.FormatUint(h.Sum64(), 10)
}

// ParseModule extracts a module name from a mangled Swift USR by reading
// the length-prefixed name that follows "s:": skip the digits encoding the
// name's length, then take that many bytes as the module name.
//
// This heuristic is fragile for nested contexts — mangled names can encode
// a module different from their lexical parent (extensions, in particular)
// — see the design notes' open question. ok is false when usr doesn't carry
// the "s:" prefix or the length prefix can't be parsed.
func ParseModule(usr string) (module string, ok bool) {
	if !hasSwiftPrefix(usr) {
		return "", false
	}
	rest := usr[len(swiftUSRPrefix):]

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return "", false
	}

	n, err := strconv.Atoi(rest[:i])
	if err != nil || n <= 0 {
		return "", false
	}

	rest = rest[i:]
	if n > len(rest) {
		return "", false
	}
	return rest[:n], true
}

// Descriptor returns the bare "<name><suffix>" or
// "<container>#<name><suffix>" token without the "swift <module>" scheme
// prefix.
func Descriptor(name string, kind scipmodel.Kind, container string) string {
	suffix := kind.Suffix()
	if container != "" {
		return fmt.Sprintf("%s#%s%s", container, name, suffix)
	}
	return name + suffix
}
