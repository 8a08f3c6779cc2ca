package store

import (
	"bytes"
	"database/sql"
	"errors"

	"github.com/btcsuite/btcd/wire"

	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
)

// Tx is the handle every Ledger Facade operation receives for the duration
// of a single store-level transaction (spec.md §4.1, §4.6, §9). All of its
// methods operate against the same underlying *sql.Tx and so observe a
// consistent snapshot.
type Tx struct {
	sqlTx *sql.Tx
}

func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	return ledgererrors.StoreError(err)
}

func (t *Tx) setMeta(key, value string) error {
	_, err := t.sqlTx.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return wrapStoreErr(err)
}

func (t *Tx) getMeta(key string) (string, error) {
	var value string
	err := t.sqlTx.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", wrapStoreErr(err)
	}
	return value, nil
}

// TipHeight returns the height of the current chain tip.
func (t *Tx) TipHeight() (int32, error) {
	var height int32
	err := t.sqlTx.QueryRow(`SELECT MAX(height) FROM blocks`).Scan(&height)
	if err != nil {
		return 0, wrapStoreErr(err)
	}
	return height, nil
}

// BestBlock returns the block record at the current tip height.
func (t *Tx) BestBlock() (*BlockRecord, error) {
	height, err := t.TipHeight()
	if err != nil {
		return nil, err
	}
	return t.BlockByHeight(height)
}

// BlockByHeight returns the block record at the given height, or an
// UnknownBlock error if no block exists there.
func (t *Tx) BlockByHeight(height int32) (*BlockRecord, error) {
	row := t.sqlTx.QueryRow(
		`SELECT height, block_id, prev_block_id, merkle_root, timestamp, mined_at
		 FROM blocks WHERE height = ?`, height,
	)
	return t.scanBlock(row)
}

// BlockByID returns the block record with the given block id.
func (t *Tx) BlockByID(blockID string) (*BlockRecord, error) {
	row := t.sqlTx.QueryRow(
		`SELECT height, block_id, prev_block_id, merkle_root, timestamp, mined_at
		 FROM blocks WHERE block_id = ?`, blockID,
	)
	return t.scanBlock(row)
}

func (t *Tx) scanBlock(row *sql.Row) (*BlockRecord, error) {
	var rec BlockRecord
	err := row.Scan(&rec.Height, &rec.BlockID, &rec.PrevBlockID, &rec.MerkleRoot, &rec.Timestamp, &rec.MinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledgererrors.LedgerError{Kind: ledgererrors.KindUnknownBlock}
	}
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	txids, err := t.blockTxIDs(rec.BlockID)
	if err != nil {
		return nil, err
	}
	rec.TxIDs = txids
	return &rec, nil
}

func (t *Tx) blockTxIDs(blockID string) ([]string, error) {
	rows, err := t.sqlTx.Query(
		`SELECT txid FROM transactions WHERE block_id = ? ORDER BY position`, blockID,
	)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapStoreErr(err)
		}
		ids = append(ids, id)
	}
	return ids, wrapStoreErr(rows.Err())
}

// GetTransaction returns the transaction record for txid, whether mined or
// in the mempool. It returns an UnknownTransaction error if absent.
func (t *Tx) GetTransaction(txid string) (*TxRecord, error) {
	var rec TxRecord
	var blockID sql.NullString
	var positionInt sql.NullInt64
	var mempoolSeqInt sql.NullInt64

	row := t.sqlTx.QueryRow(
		`SELECT txid, wtxid, raw, block_id, position, mempool_seq FROM transactions WHERE txid = ?`,
		txid,
	)
	err := row.Scan(&rec.Txid, &rec.Wtxid, &rec.Raw, &blockID, &positionInt, &mempoolSeqInt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledgererrors.LedgerError{Kind: ledgererrors.KindUnknownTransaction}
	}
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	if blockID.Valid {
		rec.BlockID = blockID.String
		rec.Position = int(positionInt.Int64)
	} else {
		rec.InMempool = true
		rec.MempoolSeq = mempoolSeqInt.Int64
	}

	msgTx := wire.NewMsgTx(wire.TxVersion)
	if err := msgTx.Deserialize(bytes.NewReader(rec.Raw)); err != nil {
		return nil, wrapStoreErr(err)
	}
	rec.MsgTx = msgTx

	return &rec, nil
}

// HasTransaction reports whether txid is already known, mined or mempool.
func (t *Tx) HasTransaction(txid string) (bool, error) {
	var count int
	err := t.sqlTx.QueryRow(`SELECT COUNT(1) FROM transactions WHERE txid = ?`, txid).Scan(&count)
	if err != nil {
		return false, wrapStoreErr(err)
	}
	return count > 0, nil
}

// GetOutput resolves an outpoint to its output, the height of the
// transaction that created it (0 for a mined height-0 coinbase; -1 if the
// creating transaction is still only in the mempool), and whether the
// creating transaction exists at all.
func (t *Tx) GetOutput(op wire.OutPoint) (*wire.TxOut, int32, bool, error) {
	rec, err := t.GetTransaction(op.Hash.String())
	if err != nil {
		if ledgererrors.Is(err, ledgererrors.KindUnknownTransaction) {
			return nil, 0, false, nil
		}
		return nil, 0, false, err
	}

	if int(op.Index) >= len(rec.MsgTx.TxOut) {
		return nil, 0, false, nil
	}

	if rec.InMempool {
		return rec.MsgTx.TxOut[op.Index], -1, true, nil
	}

	block, err := t.BlockByID(rec.BlockID)
	if err != nil {
		return nil, 0, false, err
	}
	return rec.MsgTx.TxOut[op.Index], block.Height, true, nil
}

// IsSpent reports whether op is recorded in the spent-output set.
func (t *Tx) IsSpent(op wire.OutPoint) (bool, error) {
	var count int
	err := t.sqlTx.QueryRow(
		`SELECT COUNT(1) FROM spent_outputs WHERE prev_txid = ? AND prev_index = ?`,
		op.Hash.String(), op.Index,
	).Scan(&count)
	if err != nil {
		return false, wrapStoreErr(err)
	}
	return count > 0, nil
}

// MarkSpent records op in the spent-output set.
func (t *Tx) MarkSpent(op wire.OutPoint) error {
	_, err := t.sqlTx.Exec(
		`INSERT INTO spent_outputs (prev_txid, prev_index) VALUES (?, ?)`,
		op.Hash.String(), op.Index,
	)
	return wrapStoreErr(err)
}

// InsertMempoolTx admits tx to the mempool at the next insertion-order
// sequence number.
func (t *Tx) InsertMempoolTx(tx *wire.MsgTx) error {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return wrapStoreErr(err)
	}

	var nextSeq sql.NullInt64
	err := t.sqlTx.QueryRow(`SELECT MAX(mempool_seq) FROM transactions`).Scan(&nextSeq)
	if err != nil {
		return wrapStoreErr(err)
	}
	seq := int64(1)
	if nextSeq.Valid {
		seq = nextSeq.Int64 + 1
	}

	txid := tx.TxHash().String()
	wtxid := tx.WitnessHash().String()

	_, err = t.sqlTx.Exec(
		`INSERT INTO transactions (txid, wtxid, raw, block_id, position, mempool_seq)
		 VALUES (?, ?, ?, NULL, NULL, ?)`,
		txid, wtxid, buf.Bytes(), seq,
	)
	return wrapStoreErr(err)
}

// ListMempool returns every mempool transaction in insertion order.
func (t *Tx) ListMempool() ([]*TxRecord, error) {
	rows, err := t.sqlTx.Query(
		`SELECT txid, wtxid, raw, mempool_seq FROM transactions
		 WHERE block_id IS NULL ORDER BY mempool_seq ASC`,
	)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()

	var recs []*TxRecord
	for rows.Next() {
		var rec TxRecord
		if err := rows.Scan(&rec.Txid, &rec.Wtxid, &rec.Raw, &rec.MempoolSeq); err != nil {
			return nil, wrapStoreErr(err)
		}
		rec.InMempool = true

		msgTx := wire.NewMsgTx(wire.TxVersion)
		if err := msgTx.Deserialize(bytes.NewReader(rec.Raw)); err != nil {
			return nil, wrapStoreErr(err)
		}
		rec.MsgTx = msgTx

		recs = append(recs, &rec)
	}
	return recs, wrapStoreErr(rows.Err())
}

// InsertBlock appends a new block: it writes the block row, re-homes (or
// inserts, for the coinbase) every contained transaction's block_id and
// position, and records a spent-output marker for every spent outpoint.
// Called within the same store transaction that drained the mempool, giving
// "all-or-nothing" semantics per spec.md §4.5/§9.
func (t *Tx) InsertBlock(rec *BlockRecord, txs []*wire.MsgTx, spent []wire.OutPoint) error {
	_, err := t.sqlTx.Exec(
		`INSERT INTO blocks (height, block_id, prev_block_id, merkle_root, timestamp, mined_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Height, rec.BlockID, rec.PrevBlockID, rec.MerkleRoot, rec.Timestamp, rec.MinedAt,
	)
	if err != nil {
		return wrapStoreErr(err)
	}

	for i, tx := range txs {
		txid := tx.TxHash().String()

		known, err := t.HasTransaction(txid)
		if err != nil {
			return err
		}

		if known {
			_, err = t.sqlTx.Exec(
				`UPDATE transactions SET block_id = ?, position = ?, mempool_seq = NULL
				 WHERE txid = ?`,
				rec.BlockID, i, txid,
			)
		} else {
			var buf bytes.Buffer
			if serErr := tx.Serialize(&buf); serErr != nil {
				return wrapStoreErr(serErr)
			}
			_, err = t.sqlTx.Exec(
				`INSERT INTO transactions (txid, wtxid, raw, block_id, position, mempool_seq)
				 VALUES (?, ?, ?, ?, ?, NULL)`,
				txid, tx.WitnessHash().String(), buf.Bytes(), rec.BlockID, i,
			)
		}
		if err != nil {
			return wrapStoreErr(err)
		}
	}

	for _, op := range spent {
		if err := t.MarkSpent(op); err != nil {
			return err
		}
	}

	return nil
}

// InsertKey persists a freshly generated key pair, keyed by its derived
// address.
func (t *Tx) InsertKey(rec *KeyRecord) error {
	_, err := t.sqlTx.Exec(
		`INSERT INTO keys (address, privkey, pubkey, script_type, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Address, rec.PrivKey, rec.PubKey, rec.ScriptType, rec.CreatedAt,
	)
	return wrapStoreErr(err)
}

// KeyByAddress looks up a previously generated key record by its address.
func (t *Tx) KeyByAddress(address string) (*KeyRecord, error) {
	var rec KeyRecord
	err := t.sqlTx.QueryRow(
		`SELECT address, privkey, pubkey, script_type, created_at FROM keys WHERE address = ?`,
		address,
	).Scan(&rec.Address, &rec.PrivKey, &rec.PubKey, &rec.ScriptType, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledgererrors.LedgerError{Kind: ledgererrors.KindUnknownAddress}
	}
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return &rec, nil
}

// ListKeys returns every generated key record, most recently created first.
func (t *Tx) ListKeys() ([]*KeyRecord, error) {
	rows, err := t.sqlTx.Query(
		`SELECT address, privkey, pubkey, script_type, created_at FROM keys ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()

	var recs []*KeyRecord
	for rows.Next() {
		var rec KeyRecord
		if err := rows.Scan(&rec.Address, &rec.PrivKey, &rec.PubKey, &rec.ScriptType, &rec.CreatedAt); err != nil {
			return nil, wrapStoreErr(err)
		}
		recs = append(recs, &rec)
	}
	return recs, wrapStoreErr(rows.Err())
}

// ScanUnspentForScript walks every mined transaction's outputs and returns
// those paying exactly pkScript that are not present in the spent-output
// set, implementing the scan spec.md §4.6 prescribes for balance and
// coin-selection purposes.
func (t *Tx) ScanUnspentForScript(pkScript []byte) ([]UnspentOutput, error) {
	rows, err := t.sqlTx.Query(
		`SELECT t.txid, t.raw, b.height FROM transactions t
		 JOIN blocks b ON b.block_id = t.block_id
		 WHERE t.block_id IS NOT NULL`,
	)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()

	var out []UnspentOutput
	for rows.Next() {
		var txid string
		var raw []byte
		var height int32
		if err := rows.Scan(&txid, &raw, &height); err != nil {
			return nil, wrapStoreErr(err)
		}

		msgTx := wire.NewMsgTx(wire.TxVersion)
		if err := msgTx.Deserialize(bytes.NewReader(raw)); err != nil {
			return nil, wrapStoreErr(err)
		}

		for idx, txOut := range msgTx.TxOut {
			if !bytes.Equal(txOut.PkScript, pkScript) {
				continue
			}

			op := wire.OutPoint{Hash: msgTx.TxHash(), Index: uint32(idx)}
			spent, err := t.IsSpent(op)
			if err != nil {
				return nil, err
			}
			if spent {
				continue
			}

			out = append(out, UnspentOutput{
				Outpoint: op,
				Value:    txOut.Value,
				PkScript: txOut.PkScript,
				Height:   height,
			})
		}
	}
	return out, wrapStoreErr(rows.Err())
}
