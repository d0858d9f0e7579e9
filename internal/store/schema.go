package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    mode TEXT NOT NULL,
    target_format TEXT NOT NULL,
    quality INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS conversions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    input_path TEXT NOT NULL,
    output_path TEXT NOT NULL,
    input_sha256 TEXT,
    source_format TEXT,
    target_format TEXT NOT NULL,
    quality INTEGER NOT NULL,
    input_bytes INTEGER,
    output_bytes INTEGER,
    duration_ms INTEGER,
    status TEXT NOT NULL,
    error TEXT,
    converted_at TIMESTAMP NOT NULL,
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_conversions_hash ON conversions(input_sha256, target_format, quality);
CREATE INDEX IF NOT EXISTS idx_conversions_time ON conversions(converted_at);
CREATE INDEX IF NOT EXISTS idx_conversions_run ON conversions(run_id);
`
