package database

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    manifest TEXT NOT NULL,
    fingerprint TEXT NOT NULL DEFAULT '',
    hostname TEXT NOT NULL DEFAULT '',
    pid INTEGER DEFAULT 0,
    started_at TEXT NOT NULL,
    completed_at TEXT,
    status TEXT NOT NULL,
    total INTEGER NOT NULL DEFAULT 0,
    failures INTEGER NOT NULL DEFAULT 0,
    notes TEXT
);

CREATE TABLE IF NOT EXISTS suites (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL,
    parent_id INTEGER,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    success INTEGER NOT NULL DEFAULT 0,
    unexpected_output INTEGER NOT NULL DEFAULT 0,
    expected_build_error INTEGER NOT NULL DEFAULT 0,
    build_error INTEGER NOT NULL DEFAULT 0,
    expected_runtime_error INTEGER NOT NULL DEFAULT 0,
    runtime_error INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (run_id) REFERENCES runs(id),
    FOREIGN KEY (parent_id) REFERENCES suites(id)
);

CREATE TABLE IF NOT EXISTS cases (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    suite_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    results TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (suite_id) REFERENCES suites(id)
);

CREATE INDEX IF NOT EXISTS idx_suites_run ON suites(run_id);
CREATE INDEX IF NOT EXISTS idx_suites_parent ON suites(parent_id);
CREATE INDEX IF NOT EXISTS idx_cases_suite ON cases(suite_id);
`
