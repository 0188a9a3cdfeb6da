package scipstore

// schema contains the SQL statements that create the Storage Engine's
// six-table schema.
const schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT
);

CREATE TABLE IF NOT EXISTS index_state (
    commit_hash TEXT NOT NULL,
    ts          INTEGER NOT NULL,
    files_json  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    rel_path    TEXT NOT NULL,
    language    TEXT NOT NULL,
    indexed_at  INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_rel_path ON documents(rel_path);

CREATE TABLE IF NOT EXISTS symbols (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol_id TEXT NOT NULL,
    kind      TEXT NOT NULL,
    doc_json  TEXT,
    file_id   INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_symbols_symbol_id ON symbols(symbol_id);
CREATE INDEX IF NOT EXISTS idx_symbols_file_id ON symbols(file_id);

CREATE TABLE IF NOT EXISTS occurrences (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol_id  TEXT NOT NULL,
    file_id    INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    start_line INTEGER NOT NULL,
    start_col  INTEGER NOT NULL,
    end_line   INTEGER NOT NULL,
    end_col    INTEGER NOT NULL,
    roles      INTEGER NOT NULL,
    enclosing  TEXT,
    snippet    TEXT
);

CREATE INDEX IF NOT EXISTS idx_occurrences_symbol_id ON occurrences(symbol_id);
CREATE INDEX IF NOT EXISTS idx_occurrences_file_id ON occurrences(file_id);

CREATE TABLE IF NOT EXISTS relationships (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol_id         TEXT NOT NULL,
    target_symbol_id  TEXT NOT NULL,
    kind              TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_relationships_symbol_id ON relationships(symbol_id);
`
