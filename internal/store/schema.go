package store

// Schema v1 - runs and archive cache
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Benchmark runs made on this machine
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  event_run_id TEXT,
  module_id TEXT NOT NULL,
  tool TEXT NOT NULL,
  input_path TEXT,
  input_sha1 TEXT,
  intermediate_hash TEXT,
  status TEXT NOT NULL DEFAULT 'scored',
  error TEXT,
  nr_prec INTEGER DEFAULT 0,
  median_abs_epsilon REAL,
  datapoint_json TEXT,
  pr_url TEXT,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Last public archive fetched per module
CREATE TABLE IF NOT EXISTS archives (
  module_id TEXT PRIMARY KEY,
  points INTEGER NOT NULL DEFAULT 0,
  body BLOB NOT NULL,
  fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// Schema v2 - lookup indexes
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_runs_hash ON runs(intermediate_hash);
CREATE INDEX IF NOT EXISTS idx_runs_module_created ON runs(module_id, created_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`
