// Package validate implements the Transaction Validator of spec.md §4.3: it
// enforces every non-script consensus rule on a candidate transaction,
// deferring the per-input script check to the Script Evaluator.
package validate

import (
	"bytes"
	"math"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
	"github.com/chainwayxyz/bitcoinsim/netparams"
	"github.com/chainwayxyz/bitcoinsim/script"
	"github.com/chainwayxyz/bitcoinsim/store"
)

// Validator enforces spec.md §4.3's acceptance pipeline. It is stateless;
// every call is given the store transaction and chain parameters to check
// against.
type Validator struct {
	params    *netparams.Params
	evaluator *script.Evaluator
}

// New constructs a Validator bound to the given network parameters and
// Script Evaluator.
func New(params *netparams.Params, evaluator *script.Evaluator) *Validator {
	return &Validator{params: params, evaluator: evaluator}
}

// CheckTransaction runs the full acceptance pipeline of spec.md §4.3 against
// tx, assuming it would be included at prospectiveHeight (the current tip
// height + 1 for mempool admission, or the height a block under
// construction will occupy). It returns the first rule violated, typed per
// spec.md §7, or nil if tx may be admitted.
func (v *Validator) CheckTransaction(tx *store.Tx, msgTx *wire.MsgTx, prospectiveHeight int32) error {
	if err := v.checkStructure(msgTx); err != nil {
		return err
	}

	if IsCoinbase(msgTx) {
		return nil
	}

	prevOuts, err := v.resolveInputs(tx, msgTx)
	if err != nil {
		return err
	}

	if err := v.checkDoubleSpend(tx, msgTx); err != nil {
		return err
	}

	if err := v.checkValueConservation(msgTx, prevOuts); err != nil {
		return err
	}

	if err := v.checkLockTimes(tx, msgTx, prevOuts, prospectiveHeight); err != nil {
		return err
	}

	if err := v.checkMaturity(tx, msgTx, prospectiveHeight); err != nil {
		return err
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range msgTx.TxIn {
		fetcher.AddPrevOut(in.PreviousOutPoint, prevOuts[i])
	}
	for idx := range msgTx.TxIn {
		if err := v.evaluator.EvaluateInput(msgTx, idx, fetcher); err != nil {
			return err
		}
	}

	return nil
}

// IsCoinbase reports whether msgTx is a coinbase transaction: exactly one
// input with a null previous outpoint.
func IsCoinbase(msgTx *wire.MsgTx) bool {
	if len(msgTx.TxIn) != 1 {
		return false
	}
	prevOut := msgTx.TxIn[0].PreviousOutPoint
	var zero [32]byte
	return bytes.Equal(prevOut.Hash[:], zero[:]) && prevOut.Index == math.MaxUint32
}

func (v *Validator) checkStructure(msgTx *wire.MsgTx) error {
	if len(msgTx.TxIn) == 0 || len(msgTx.TxOut) == 0 {
		return ledgererrors.New(ledgererrors.KindTransactionMalformed, "no inputs or outputs")
	}

	if IsCoinbase(msgTx) {
		if len(msgTx.TxIn) != 1 {
			return ledgererrors.New(ledgererrors.KindTransactionMalformed, "coinbase must have a single input")
		}
	} else {
		seen := make(map[wire.OutPoint]struct{}, len(msgTx.TxIn))
		for _, in := range msgTx.TxIn {
			if _, dup := seen[in.PreviousOutPoint]; dup {
				return ledgererrors.New(ledgererrors.KindTransactionMalformed, "duplicate input outpoint")
			}
			seen[in.PreviousOutPoint] = struct{}{}
		}
	}

	var buf bytes.Buffer
	if err := msgTx.Serialize(&buf); err != nil {
		return ledgererrors.New(ledgererrors.KindTransactionMalformed, err.Error())
	}
	if buf.Len() > v.params.MaxTxSize {
		return ledgererrors.New(ledgererrors.KindTransactionMalformed, "serialized transaction too large")
	}

	return nil
}

// resolveInputs looks up the previous output for every input, returning
// PreviousOutputMissing for the first one the store has no record of.
func (v *Validator) resolveInputs(tx *store.Tx, msgTx *wire.MsgTx) ([]*wire.TxOut, error) {
	prevOuts := make([]*wire.TxOut, len(msgTx.TxIn))
	for i, in := range msgTx.TxIn {
		out, _, found, err := tx.GetOutput(in.PreviousOutPoint)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ledgererrors.PreviousOutputMissing(in.PreviousOutPoint)
		}
		prevOuts[i] = out
	}
	return prevOuts, nil
}

func (v *Validator) checkDoubleSpend(tx *store.Tx, msgTx *wire.MsgTx) error {
	for _, in := range msgTx.TxIn {
		spent, err := tx.IsSpent(in.PreviousOutPoint)
		if err != nil {
			return err
		}
		if spent {
			return ledgererrors.DoubleSpend(in.PreviousOutPoint)
		}

		conflict, err := mempoolSpends(tx, in.PreviousOutPoint, msgTx.TxHash())
		if err != nil {
			return err
		}
		if conflict {
			return ledgererrors.DoubleSpend(in.PreviousOutPoint)
		}
	}
	return nil
}

// mempoolSpends reports whether some mempool transaction other than
// excludeTxid already spends op, implementing the same-block/mempool
// conflict prevention of spec.md §4.4.
func mempoolSpends(tx *store.Tx, op wire.OutPoint, excludeTxid [32]byte) (bool, error) {
	entries, err := tx.ListMempool()
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.MsgTx.TxHash() == excludeTxid {
			continue
		}
		for _, in := range entry.MsgTx.TxIn {
			if in.PreviousOutPoint == op {
				return true, nil
			}
		}
	}
	return false, nil
}

func (v *Validator) checkValueConservation(msgTx *wire.MsgTx, prevOuts []*wire.TxOut) error {
	var inputTotal, outputTotal int64

	for _, out := range prevOuts {
		inputTotal += out.Value
	}

	for _, out := range msgTx.TxOut {
		if out.Value < 0 {
			return ledgererrors.New(ledgererrors.KindValueOverflow, "negative output value")
		}
		outputTotal += out.Value
		if outputTotal > v.params.MaxMoney {
			return ledgererrors.New(ledgererrors.KindValueOverflow, "output total exceeds money supply")
		}
	}

	if inputTotal < outputTotal {
		return ledgererrors.New(ledgererrors.KindInsufficientInputValue, "")
	}

	return nil
}

func (v *Validator) checkLockTimes(tx *store.Tx, msgTx *wire.MsgTx, prevOuts []*wire.TxOut, prospectiveHeight int32) error {
	if err := v.checkRelativeLockTimes(tx, msgTx, prospectiveHeight); err != nil {
		return err
	}
	return v.checkAbsoluteLockTime(msgTx, prospectiveHeight)
}

// checkRelativeLockTimes enforces BIP-68/CSV height-based relative locks
// (spec.md §4.3 rule 5). Time-based relative locks are out of scope per
// spec.md §1 and are not rejected or enforced.
func (v *Validator) checkRelativeLockTimes(tx *store.Tx, msgTx *wire.MsgTx, prospectiveHeight int32) error {
	if msgTx.Version < 2 {
		return nil
	}

	for i, in := range msgTx.TxIn {
		if in.Sequence&wire.SequenceLockTimeDisabled != 0 {
			continue
		}
		if in.Sequence&wire.SequenceLockTimeIsSeconds != 0 {
			// Time-based relative locks are out of scope.
			continue
		}

		_, height, found, err := tx.GetOutput(in.PreviousOutPoint)
		if err != nil {
			return err
		}
		if !found || height < 0 {
			// Spending an unconfirmed (mempool) output: its age
			// is zero, so any nonzero relative lock fails.
			threshold := in.Sequence & wire.SequenceLockTimeMask
			if threshold > 0 {
				return ledgererrors.LockTimeNotSatisfied("relative")
			}
			continue
		}

		age := prospectiveHeight - height
		threshold := int32(in.Sequence & wire.SequenceLockTimeMask)
		if age < threshold {
			return ledgererrors.LockTimeNotSatisfied("relative")
		}
		_ = i
	}
	return nil
}

// checkAbsoluteLockTime enforces nLockTime (spec.md §4.3 rule 6). A
// transaction whose inputs are all "final" (max sequence) bypasses the
// check, matching consensus semantics; time-based locktimes are accepted
// without comparison since the simulator tracks no wall-clock chain time.
func (v *Validator) checkAbsoluteLockTime(msgTx *wire.MsgTx, prospectiveHeight int32) error {
	if msgTx.LockTime == 0 {
		return nil
	}

	allFinal := true
	for _, in := range msgTx.TxIn {
		if in.Sequence != wire.MaxTxInSequenceNum {
			allFinal = false
			break
		}
	}
	if allFinal {
		return nil
	}

	if msgTx.LockTime < txscript.LockTimeThreshold {
		if int64(prospectiveHeight) < int64(msgTx.LockTime) {
			return ledgererrors.LockTimeNotSatisfied("absolute")
		}
	}
	return nil
}

// checkMaturity enforces spec.md §4.3's 100-confirmation coinbase maturity
// rule on every non-coinbase input.
func (v *Validator) checkMaturity(tx *store.Tx, msgTx *wire.MsgTx, prospectiveHeight int32) error {
	for _, in := range msgTx.TxIn {
		prevTx, err := tx.GetTransaction(in.PreviousOutPoint.Hash.String())
		if err != nil {
			return err
		}
		if !IsCoinbase(prevTx.MsgTx) || prevTx.InMempool {
			continue
		}

		block, err := tx.BlockByID(prevTx.BlockID)
		if err != nil {
			return err
		}

		if prospectiveHeight-block.Height < v.params.CoinbaseMaturity {
			return ledgererrors.ImmatureCoinbase()
		}
	}
	return nil
}
