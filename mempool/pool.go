// Package mempool implements the Mempool of spec.md §4.4: the insertion-
// ordered holding area for transactions accepted by the Transaction
// Validator but not yet assembled into a block. Membership itself is
// tracked by the Persistence Store (a transaction row with no block id is a
// mempool entry); this package owns the admission policy in front of it.
package mempool

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
	"github.com/chainwayxyz/bitcoinsim/store"
	"github.com/chainwayxyz/bitcoinsim/validate"
)

// Pool admits raw transactions into a Store's mempool, rejecting anything
// the Transaction Validator would not accept at the current tip.
type Pool struct {
	validator *validate.Validator
}

// New constructs a Pool bound to the given Transaction Validator.
func New(validator *validate.Validator) *Pool {
	return &Pool{validator: validator}
}

// Submit attempts to admit msgTx to st's mempool. It runs inside its own
// store transaction: a duplicate txid (already mined or already pending) is
// rejected before any validation work, and a failed validation leaves the
// store untouched, matching spec.md §4.4's acceptance rule.
func (p *Pool) Submit(st *store.Store, msgTx *wire.MsgTx) error {
	return st.Update(func(tx *store.Tx) error {
		txid := msgTx.TxHash().String()

		known, err := tx.HasTransaction(txid)
		if err != nil {
			return err
		}
		if known {
			return ledgererrors.New(ledgererrors.KindTransactionMalformed, "transaction already known")
		}

		tip, err := tx.TipHeight()
		if err != nil {
			return err
		}

		if err := p.validator.CheckTransaction(tx, msgTx, tip+1); err != nil {
			return err
		}

		if validate.IsCoinbase(msgTx) {
			return ledgererrors.New(ledgererrors.KindTransactionMalformed, "coinbase transactions may not be submitted directly")
		}

		return tx.InsertMempoolTx(msgTx)
	})
}

// List returns every mempool transaction in insertion order.
func (p *Pool) List(st *store.Store) ([]*store.TxRecord, error) {
	var recs []*store.TxRecord
	err := st.View(func(tx *store.Tx) error {
		var err error
		recs, err = tx.ListMempool()
		return err
	})
	return recs, err
}
