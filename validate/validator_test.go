package validate

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/chainwayxyz/bitcoinsim/addr"
	"github.com/chainwayxyz/bitcoinsim/assembler"
	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
	"github.com/chainwayxyz/bitcoinsim/netparams"
	"github.com/chainwayxyz/bitcoinsim/script"
	"github.com/chainwayxyz/bitcoinsim/store"
)

func newTestEnv(t *testing.T) (*store.Store, *netparams.Params, *Validator) {
	t.Helper()
	st, _, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	params := netparams.Default()
	return st, params, New(params, script.New())
}

func signSpend(t *testing.T, st *store.Store, tx *wire.MsgTx, idx int, prevOuts *txscript.MultiPrevOutFetcher, ownerAddr string) {
	t.Helper()
	priv, err := addr.PrivateKeyForAddress(st, ownerAddr)
	require.NoError(t, err)

	sigHashes := txscript.NewTxSigHashes(tx, prevOuts)
	sigHash, err := txscript.CalcTaprootSignatureHash(sigHashes, txscript.SigHashDefault, tx, idx, prevOuts)
	require.NoError(t, err)

	tweaked := txscript.TweakTaprootPrivKey(*priv, nil)
	sig, err := schnorr.Sign(tweaked, sigHash)
	require.NoError(t, err)

	tx.TxIn[idx].Witness = wire.TxWitness{sig.Serialize()}
}

func TestIsCoinbase(t *testing.T) {
	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex}})
	coinbase.AddTxOut(&wire.TxOut{Value: 1})
	require.True(t, IsCoinbase(coinbase))

	ordinary := wire.NewMsgTx(1)
	ordinary.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0}})
	ordinary.AddTxOut(&wire.TxOut{Value: 1})
	require.False(t, IsCoinbase(ordinary))
}

func TestCheckTransactionRejectsEmptyInputsOrOutputs(t *testing.T) {
	st, _, val := newTestEnv(t)

	noInputs := wire.NewMsgTx(2)
	noInputs.AddTxOut(&wire.TxOut{Value: 1})

	err := st.View(func(tx *store.Tx) error {
		return val.CheckTransaction(tx, noInputs, 1)
	})
	require.Error(t, err)
	require.True(t, ledgererrors.Is(err, ledgererrors.KindTransactionMalformed))

	noOutputs := wire.NewMsgTx(2)
	noOutputs.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0}, Sequence: wire.MaxTxInSequenceNum})

	err = st.View(func(tx *store.Tx) error {
		return val.CheckTransaction(tx, noOutputs, 1)
	})
	require.Error(t, err)
	require.True(t, ledgererrors.Is(err, ledgererrors.KindTransactionMalformed))
}

func TestCheckTransactionRejectsMissingPreviousOutput(t *testing.T) {
	st, _, val := newTestEnv(t)

	spend := wire.NewMsgTx(2)
	spend.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0}, Sequence: wire.MaxTxInSequenceNum})
	spend.AddTxOut(&wire.TxOut{Value: 1})

	err := st.View(func(tx *store.Tx) error {
		return val.CheckTransaction(tx, spend, 1)
	})
	require.Error(t, err)
	require.True(t, ledgererrors.Is(err, ledgererrors.KindPreviousOutputMissing))
}

// Mining past coinbase maturity, then overspending the first block's coinbase
// by requesting more value out than the subsidy, must be rejected.
func TestCheckTransactionRejectsInsufficientValue(t *testing.T) {
	st, params, val := newTestEnv(t)
	asm := assembler.New(params)
	gen := addr.New(params.Net)

	minerAddr, err := gen.NewAddress(st)
	require.NoError(t, err)
	minerScript, err := addr.PkScript(minerAddr)
	require.NoError(t, err)

	_, err = asm.GenerateBlocks(st, minerScript, int(params.CoinbaseMaturity)+1)
	require.NoError(t, err)

	recvAddr, err := gen.NewAddress(st)
	require.NoError(t, err)
	recvScript, err := addr.PkScript(recvAddr)
	require.NoError(t, err)

	var op wire.OutPoint
	var out *wire.TxOut
	require.NoError(t, st.View(func(tx *store.Tx) error {
		block, err := tx.BlockByHeight(1)
		if err != nil {
			return err
		}
		rec, err := tx.GetTransaction(block.TxIDs[0])
		if err != nil {
			return err
		}
		op = wire.OutPoint{Hash: rec.MsgTx.TxHash(), Index: 0}
		out = rec.MsgTx.TxOut[0]
		return nil
	}))

	overspend := wire.NewMsgTx(2)
	overspend.AddTxIn(&wire.TxIn{PreviousOutPoint: op, Sequence: wire.MaxTxInSequenceNum})
	overspend.AddTxOut(&wire.TxOut{Value: out.Value * 2, PkScript: recvScript})

	prevOuts := txscript.NewMultiPrevOutFetcher(map[wire.OutPoint]*wire.TxOut{op: out})
	signSpend(t, st, overspend, 0, prevOuts, minerAddr.EncodeAddress())

	err = st.View(func(tx *store.Tx) error {
		tip, err := tx.TipHeight()
		if err != nil {
			return err
		}
		return val.CheckTransaction(tx, overspend, tip+1)
	})
	require.Error(t, err)
	require.True(t, ledgererrors.Is(err, ledgererrors.KindInsufficientInputValue))
}

func TestCheckTransactionAcceptsValidSpend(t *testing.T) {
	st, params, val := newTestEnv(t)
	asm := assembler.New(params)
	gen := addr.New(params.Net)

	minerAddr, err := gen.NewAddress(st)
	require.NoError(t, err)
	minerScript, err := addr.PkScript(minerAddr)
	require.NoError(t, err)

	_, err = asm.GenerateBlocks(st, minerScript, int(params.CoinbaseMaturity)+1)
	require.NoError(t, err)

	recvAddr, err := gen.NewAddress(st)
	require.NoError(t, err)
	recvScript, err := addr.PkScript(recvAddr)
	require.NoError(t, err)

	var op wire.OutPoint
	var out *wire.TxOut
	require.NoError(t, st.View(func(tx *store.Tx) error {
		block, err := tx.BlockByHeight(1)
		if err != nil {
			return err
		}
		rec, err := tx.GetTransaction(block.TxIDs[0])
		if err != nil {
			return err
		}
		op = wire.OutPoint{Hash: rec.MsgTx.TxHash(), Index: 0}
		out = rec.MsgTx.TxOut[0]
		return nil
	}))

	spend := wire.NewMsgTx(2)
	spend.AddTxIn(&wire.TxIn{PreviousOutPoint: op, Sequence: wire.MaxTxInSequenceNum})
	spend.AddTxOut(&wire.TxOut{Value: out.Value, PkScript: recvScript})

	prevOuts := txscript.NewMultiPrevOutFetcher(map[wire.OutPoint]*wire.TxOut{op: out})
	signSpend(t, st, spend, 0, prevOuts, minerAddr.EncodeAddress())

	err = st.View(func(tx *store.Tx) error {
		tip, err := tx.TipHeight()
		if err != nil {
			return err
		}
		return val.CheckTransaction(tx, spend, tip+1)
	})
	require.NoError(t, err)
}
