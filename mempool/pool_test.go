package mempool

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
	"github.com/chainwayxyz/bitcoinsim/validate"
)

func newTestPool(t *testing.T) (*store.Store, *netparams.Params, *Pool) {
	t.Helper()
	st, _, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	params := netparams.Default()
	val := validate.New(params, script.New())
	return st, params, New(val)
}

func matureCoin(t *testing.T, st *store.Store, params *netparams.Params) (owner string, op wire.OutPoint, out *wire.TxOut) {
	t.Helper()
	asm := assembler.New(params)
	gen := addr.New(params.Net)

	minerAddr, err := gen.NewAddress(st)
	require.NoError(t, err)
	minerScript, err := addr.PkScript(minerAddr)
	require.NoError(t, err)

	_, err = asm.GenerateBlocks(st, minerScript, int(params.CoinbaseMaturity)+1)
	require.NoError(t, err)

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

	return minerAddr.EncodeAddress(), op, out
}

func sign(t *testing.T, st *store.Store, tx *wire.MsgTx, idx int, prevOuts *txscript.MultiPrevOutFetcher, owner string) {
	t.Helper()
	priv, err := addr.PrivateKeyForAddress(st, owner)
	require.NoError(t, err)

	sigHashes := txscript.NewTxSigHashes(tx, prevOuts)
	sigHash, err := txscript.CalcTaprootSignatureHash(sigHashes, txscript.SigHashDefault, tx, idx, prevOuts)
	require.NoError(t, err)

	tweaked := txscript.TweakTaprootPrivKey(*priv, nil)
	sig, err := schnorr.Sign(tweaked, sigHash)
	require.NoError(t, err)

	tx.TxIn[idx].Witness = wire.TxWitness{sig.Serialize()}
}

func TestSubmitAcceptsValidTransaction(t *testing.T) {
	st, params, pool := newTestPool(t)
	owner, op, out := matureCoin(t, st, params)

	gen := addr.New(params.Net)
	recvAddr, err := gen.NewAddress(st)
	require.NoError(t, err)
	recvScript, err := addr.PkScript(recvAddr)
	require.NoError(t, err)

	spend := wire.NewMsgTx(2)
	spend.AddTxIn(&wire.TxIn{PreviousOutPoint: op, Sequence: wire.MaxTxInSequenceNum})
	spend.AddTxOut(&wire.TxOut{Value: out.Value, PkScript: recvScript})
	prevOuts := txscript.NewMultiPrevOutFetcher(map[wire.OutPoint]*wire.TxOut{op: out})
	sign(t, st, spend, 0, prevOuts, owner)

	require.NoError(t, pool.Submit(st, spend))

	entries, err := pool.List(st)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, spend.TxHash().String(), entries[0].Txid)
}

func TestSubmitRejectsAlreadyKnownTxid(t *testing.T) {
	st, params, pool := newTestPool(t)
	owner, op, out := matureCoin(t, st, params)

	gen := addr.New(params.Net)
	recvAddr, err := gen.NewAddress(st)
	require.NoError(t, err)
	recvScript, err := addr.PkScript(recvAddr)
	require.NoError(t, err)

	spend := wire.NewMsgTx(2)
	spend.AddTxIn(&wire.TxIn{PreviousOutPoint: op, Sequence: wire.MaxTxInSequenceNum})
	spend.AddTxOut(&wire.TxOut{Value: out.Value, PkScript: recvScript})
	prevOuts := txscript.NewMultiPrevOutFetcher(map[wire.OutPoint]*wire.TxOut{op: out})
	sign(t, st, spend, 0, prevOuts, owner)

	require.NoError(t, pool.Submit(st, spend))

	err = pool.Submit(st, spend)
	require.Error(t, err)
	require.True(t, ledgererrors.Is(err, ledgererrors.KindTransactionMalformed))
}

func TestSubmitRejectsCoinbase(t *testing.T) {
	st, _, pool := newTestPool(t)

	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex}})
	coinbase.AddTxOut(&wire.TxOut{Value: 1})

	err := pool.Submit(st, coinbase)
	require.Error(t, err)
	require.True(t, ledgererrors.Is(err, ledgererrors.KindTransactionMalformed))
}
