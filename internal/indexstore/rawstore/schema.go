package rawstore

// schema contains the SQL statements that create the raw index-store
// fixture schema. This stands in for the on-disk format the real compiler
// index store (libIndexStore) would expose through cgo; the dynamic-
// library loader itself is out of scope here.
const schema = `
CREATE TABLE IF NOT EXISTS units (
    usr  TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    kind TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS occurrences (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    usr          TEXT NOT NULL,
    file_path    TEXT NOT NULL,
    line         INTEGER NOT NULL,
    column       INTEGER NOT NULL,
    roles        INTEGER NOT NULL,
    is_canonical INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_occurrences_usr ON occurrences(usr);
CREATE INDEX IF NOT EXISTS idx_occurrences_canonical ON occurrences(is_canonical);

CREATE TABLE IF NOT EXISTS relations (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    occurrence_id INTEGER NOT NULL REFERENCES occurrences(id) ON DELETE CASCADE,
    role          TEXT NOT NULL,
    target_usr    TEXT NOT NULL,
    target_name   TEXT
);

CREATE INDEX IF NOT EXISTS idx_relations_occurrence ON relations(occurrence_id);
`
