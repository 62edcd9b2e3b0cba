package store

// schema creates every table from spec §3 idempotently. CREATE TABLE IF NOT
// EXISTS makes this safe to run on every startup against an existing file.
const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id_hash          TEXT PRIMARY KEY,
	first_seen_at         INTEGER NOT NULL,
	last_seen_at          INTEGER NOT NULL,
	chain_id              TEXT,
	task_type             TEXT,
	status                TEXT NOT NULL,
	success               INTEGER,
	execution_time_bucket TEXT,
	gas_used_bucket       TEXT,
	cached                INTEGER,
	reporting_nodes       INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS invoices (
	invoice_id_hash       TEXT PRIMARY KEY,
	task_id_hash          TEXT,
	first_seen_at         INTEGER NOT NULL,
	last_seen_at          INTEGER NOT NULL,
	chain_id              TEXT,
	steps_computed_bucket TEXT,
	memory_used_bucket    TEXT,
	operation             TEXT,
	reporting_nodes       INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS nodes (
	node_id             TEXT PRIMARY KEY,
	first_seen_at       INTEGER NOT NULL,
	last_seen_at        INTEGER NOT NULL,
	status              TEXT,
	total_tasks_bucket  TEXT,
	active_tasks_bucket TEXT,
	continent_bucket    TEXT,
	location_bucket     TEXT,
	heartbeat_count     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS stats_history (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp         INTEGER NOT NULL,
	active_nodes      INTEGER NOT NULL,
	total_nodes       INTEGER NOT NULL,
	total_tasks       INTEGER NOT NULL,
	completed_tasks   INTEGER NOT NULL,
	failed_tasks      INTEGER NOT NULL,
	cached_tasks      INTEGER NOT NULL,
	tasks_last_24h    INTEGER NOT NULL,
	total_invoices    INTEGER NOT NULL,
	invoices_last_24h INTEGER NOT NULL,
	success_rate      REAL NOT NULL,
	cache_hit_rate    REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS tru_burns (
	tx_hash          TEXT NOT NULL,
	log_index        INTEGER NOT NULL,
	block_number     INTEGER NOT NULL,
	timestamp        INTEGER NOT NULL,
	from_address     TEXT NOT NULL,
	to_address       TEXT NOT NULL,
	amount           TEXT NOT NULL,
	amount_formatted REAL NOT NULL,
	burn_type        TEXT,
	PRIMARY KEY (tx_hash, log_index)
);

CREATE TABLE IF NOT EXISTS burn_sync_state (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	last_block   INTEGER NOT NULL DEFAULT 0,
	total_burns  INTEGER NOT NULL DEFAULT 0,
	last_sync_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_tasks_last_seen ON tasks(last_seen_at);
CREATE INDEX IF NOT EXISTS idx_tasks_first_seen ON tasks(first_seen_at);
CREATE INDEX IF NOT EXISTS idx_invoices_last_seen ON invoices(last_seen_at);
CREATE INDEX IF NOT EXISTS idx_nodes_last_seen ON nodes(last_seen_at);
CREATE INDEX IF NOT EXISTS idx_stats_history_timestamp ON stats_history(timestamp);
CREATE INDEX IF NOT EXISTS idx_tru_burns_block ON tru_burns(block_number);
`

// migrations lists forward-only ALTER TABLE statements applied after the
// base schema. Each is independent and its failure (e.g. "duplicate
// column") is swallowed by runMigrations — the same tolerance spec §9
// "Schema evolution" describes, so a database created by an older version
// of this schema still opens cleanly.
var migrations = []string{
	`ALTER TABLE tasks ADD COLUMN reporting_nodes INTEGER NOT NULL DEFAULT 1`,
	`ALTER TABLE invoices ADD COLUMN reporting_nodes INTEGER NOT NULL DEFAULT 1`,
	`ALTER TABLE nodes ADD COLUMN heartbeat_count INTEGER NOT NULL DEFAULT 1`,
	`ALTER TABLE burn_sync_state ADD COLUMN last_sync_at INTEGER NOT NULL DEFAULT 0`,
}
