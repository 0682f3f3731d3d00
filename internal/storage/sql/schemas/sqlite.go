package schemas

const SQLITE_SCHEMA = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    state TEXT NOT NULL,
    submitted_at INTEGER NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    entity TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_state
ON runs (state);
`

const POSTGRES_SCHEMA = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    state TEXT NOT NULL,
    submitted_at BIGINT NOT NULL,
    created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
    entity JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_state
ON runs (state);
`
