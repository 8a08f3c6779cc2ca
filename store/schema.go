package store

// schema holds the full DDL for a fresh store file. It is executed with
// CREATE TABLE/INDEX IF NOT EXISTS so that attaching to an already
// initialized file is a no-op, matching the attach-if-exists policy of
// spec.md §5 and §9.
const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS blocks (
	height        INTEGER PRIMARY KEY,
	block_id      TEXT NOT NULL UNIQUE,
	prev_block_id TEXT NOT NULL,
	merkle_root   TEXT NOT NULL,
	timestamp     INTEGER NOT NULL,
	mined_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	txid        TEXT PRIMARY KEY,
	wtxid       TEXT NOT NULL,
	raw         BLOB NOT NULL,
	block_id    TEXT,
	position    INTEGER,
	mempool_seq INTEGER,
	FOREIGN KEY (block_id) REFERENCES blocks(block_id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_block ON transactions(block_id);
CREATE INDEX IF NOT EXISTS idx_transactions_mempool_seq ON transactions(mempool_seq);

CREATE TABLE IF NOT EXISTS spent_outputs (
	prev_txid  TEXT NOT NULL,
	prev_index INTEGER NOT NULL,
	PRIMARY KEY (prev_txid, prev_index)
);

CREATE TABLE IF NOT EXISTS keys (
	address     TEXT PRIMARY KEY,
	privkey     BLOB NOT NULL,
	pubkey      BLOB NOT NULL,
	script_type TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
`
