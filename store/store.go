// Package store implements the Persistence Store: a single embedded
// relational database (SQLite, via mattn/go-sqlite3) encapsulating all
// ledger state. Every mutating operation runs inside one store-level
// transaction, so a failed validation never leaves partial state.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
	_ "github.com/mattn/go-sqlite3"

	"github.com/chainwayxyz/bitcoinsim/internal/build"
	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
)

var log = build.NewSubLogger("STOR", nil)

// UseLogger replaces the package-level logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

const metaKeyGenesisTime = "genesis_time"

// Store is the single handle every Ledger Facade method acquires a
// transaction against. Mutating operations serialize through mu in its
// exclusive form; read-only queries take its shared form, matching spec.md
// §5's single-writer/multi-reader model. The handle keeps a single database
// connection, so store transactions still run one at a time.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open attaches to the store file at path, or to a private in-memory
// database if path is empty or ":memory:". If the file does not yet exist
// (or is a fresh in-memory handle), the schema and genesis block are
// initialized and created is true. If the file already holds a populated
// schema, Open attaches to it without modification — "cloning" an existing
// ledger never erases its state (spec.md §5, §9 Open Questions).
func Open(path string) (st *Store, created bool, err error) {
	dsn := path
	memory := path == "" || path == ":memory:"
	if memory {
		// Deliberately not cache=shared: that DSN is identical across
		// every in-memory Store, so concurrently open instances would
		// see each other's rows. SetMaxOpenConns(1) keeps every query
		// on the one connection this private database lives on.
		dsn = ":memory:"
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if mkErr := os.MkdirAll(dir, 0700); mkErr != nil {
				return nil, false, ledgererrors.StoreError(mkErr)
			}
		}
		existed := fileExists(path)
		created = !existed
		dsn = fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, false, ledgererrors.StoreError(err)
	}
	// SQLite allows only a single writer; serializing through one
	// connection avoids SQLITE_BUSY under our own mutex discipline.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, false, ledgererrors.StoreError(err)
	}

	s := &Store{db: db, path: path}

	if memory {
		created = true
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, false, ledgererrors.StoreError(err)
	}

	if created {
		if err := s.initGenesis(); err != nil {
			db.Close()
			return nil, false, err
		}
		log.Infof("initialized fresh ledger schema at %s", describePath(path))
	} else {
		log.Infof("attached to existing ledger at %s", describePath(path))
	}

	return s, created, nil
}

func describePath(path string) string {
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	return path
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() > 0
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path this store was opened against (empty for
// an in-memory instance).
func (s *Store) Path() string {
	return s.path
}

// Update runs fn inside an exclusive, write-capable store transaction.
// fn's returned error (if any) aborts the transaction and propagates
// unchanged to the caller, per spec.md §7's propagation policy.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.Begin()
	if err != nil {
		return ledgererrors.StoreError(err)
	}

	if err := fn(&Tx{sqlTx: sqlTx}); err != nil {
		sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return ledgererrors.StoreError(err)
	}
	return nil
}

// View runs fn inside a read-only store transaction. The lock excludes View
// calls only while an Update is running; concurrent View calls still wait
// for the store's single connection, one transaction at a time.
func (s *Store) View(fn func(tx *Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sqlTx, err := s.db.Begin()
	if err != nil {
		return ledgererrors.StoreError(err)
	}
	defer sqlTx.Rollback()

	return fn(&Tx{sqlTx: sqlTx})
}

// initGenesis writes the meta row recording this instance's creation time
// and the height-0 genesis block. It is only called for a freshly created
// store, per the attach-if-exists rule.
func (s *Store) initGenesis() error {
	now := time.Now().Unix()

	return s.Update(func(tx *Tx) error {
		if err := tx.setMeta(metaKeyGenesisTime, fmt.Sprintf("%d", now)); err != nil {
			return err
		}

		genesis := genesisBlockRecord(now)
		_, err := tx.sqlTx.Exec(
			`INSERT INTO blocks (height, block_id, prev_block_id, merkle_root, timestamp, mined_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			genesis.Height, genesis.BlockID, genesis.PrevBlockID,
			genesis.MerkleRoot, genesis.Timestamp, genesis.MinedAt,
		)
		if err != nil {
			return ledgererrors.StoreError(err)
		}
		return nil
	})
}

// GenesisTime returns the wall-clock creation time recorded for this store,
// used by the Block Assembler to compute every later block's timestamp
// deterministically from height (spec.md §5).
func (s *Store) GenesisTime() (int64, error) {
	var ts int64
	err := s.View(func(tx *Tx) error {
		v, err := tx.getMeta(metaKeyGenesisTime)
		if err != nil {
			return err
		}
		_, scanErr := fmt.Sscanf(v, "%d", &ts)
		if scanErr != nil {
			return ledgererrors.StoreError(scanErr)
		}
		return nil
	})
	return ts, err
}
