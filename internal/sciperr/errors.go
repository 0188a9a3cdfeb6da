// Package sciperr defines the error taxonomy shared across the indexing
// pipeline, so callers can branch on failure kind with errors.Is instead of
// string-matching messages.
package sciperr

import "errors"

// Sentinel kinds. Wrap these with fmt.Errorf("...: %w", ErrX) at the point
// of failure so errors.Is still matches after context is attached.
var (
	// ErrIndexStoreNotFound means neither Index.noindex/DataStore nor
	// Index/DataStore exists under the derived-data root.
	ErrIndexStoreNotFound = errors.New("index store not found")

	// ErrLibraryNotFound means the native index-reading library could not
	// be located among its candidate paths.
	ErrLibraryNotFound = errors.New("index store library not found")

	// ErrSchemaCreation, ErrStatementPreparation, ErrStatementExecution,
	// ErrOpenFailed are database-layer failures.
	ErrSchemaCreation       = errors.New("schema creation failed")
	ErrStatementPreparation = errors.New("statement preparation failed")
	ErrStatementExecution   = errors.New("statement execution failed")
	ErrOpenFailed           = errors.New("database open failed")

	// ErrNotAGitRepository means the project root is not a git working
	// tree, or git itself could not be run. Recoverable: the orchestrator
	// downgrades to legacy mode.
	ErrNotAGitRepository = errors.New("not a git repository")

	// ErrCacheNotFound means a branch cache was expected but is absent.
	ErrCacheNotFound = errors.New("branch cache not found")

	// ErrMigrationFailure means the legacy state file could not be read
	// or converted. Non-fatal: callers log and proceed without migration.
	ErrMigrationFailure = errors.New("legacy state migration failed")
)
