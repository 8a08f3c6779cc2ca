package ledgertest

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/chainwayxyz/bitcoinsim/addr"
	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
	"github.com/chainwayxyz/bitcoinsim/mempool"
	"github.com/chainwayxyz/bitcoinsim/script"
	"github.com/chainwayxyz/bitcoinsim/store"
	"github.com/chainwayxyz/bitcoinsim/validate"
)

// signTestInput produces a BIP-341 key-path witness for input inputIndex of
// tx, spending its previous output under the key behind ownerAddr, and
// attaches it.
func signTestInput(t *testing.T, h *Harness, tx *wire.MsgTx, inputIndex int, prevOuts *txscript.MultiPrevOutFetcher, ownerAddr string) {
	t.Helper()

	priv, err := addr.PrivateKeyForAddress(h.Store, ownerAddr)
	require.NoError(t, err)

	sigHashes := txscript.NewTxSigHashes(tx, prevOuts)
	sigHash, err := txscript.CalcTaprootSignatureHash(sigHashes, txscript.SigHashDefault, tx, inputIndex, prevOuts)
	require.NoError(t, err)

	tweaked := txscript.TweakTaprootPrivKey(*priv, nil)
	sig, err := schnorr.Sign(tweaked, sigHash)
	require.NoError(t, err)

	tx.TxIn[inputIndex].Witness = wire.TxWitness{sig.Serialize()}
}

func newValidatorAndPool(h *Harness) *mempool.Pool {
	val := validate.New(h.Params, script.New())
	return mempool.New(val)
}

// outputAt finds the outpoint and output of the first output in the block at
// height paying exactly pkScript.
func outputAt(t *testing.T, h *Harness, height int32, pkScript []byte) (wire.OutPoint, *wire.TxOut) {
	t.Helper()

	var op wire.OutPoint
	var out *wire.TxOut
	err := h.Store.View(func(tx *store.Tx) error {
		block, err := tx.BlockByHeight(height)
		if err != nil {
			return err
		}
		for _, txid := range block.TxIDs {
			rec, err := tx.GetTransaction(txid)
			if err != nil {
				return err
			}
			for i, o := range rec.MsgTx.TxOut {
				if string(o.PkScript) == string(pkScript) {
					op = wire.OutPoint{Hash: rec.MsgTx.TxHash(), Index: uint32(i)}
					out = o
					return nil
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, out, "no matching output at height %d", height)
	return op, out
}

// S3 — submitting a conflicting second spend of the same outpoint is
// rejected, and the mempool keeps only the first transaction.
func TestDoubleSpendRejected(t *testing.T) {
	h := New(t)
	defer h.Close()
	pool := newValidatorAndPool(h)

	payerAddr, err := h.Client().GetNewAddress()
	require.NoError(t, err)
	_, err = h.Client().GenerateToAddress(101, payerAddr)
	require.NoError(t, err)

	payerScript, err := addr.PkScript(payerAddr)
	require.NoError(t, err)
	op, out := outputAt(t, h, 1, payerScript)

	recvAddr1, err := h.Client().GetNewAddress()
	require.NoError(t, err)
	recvAddr2, err := h.Client().GetNewAddress()
	require.NoError(t, err)
	script1, err := addr.PkScript(recvAddr1)
	require.NoError(t, err)
	script2, err := addr.PkScript(recvAddr2)
	require.NoError(t, err)

	prevOuts := txscript.NewMultiPrevOutFetcher(map[wire.OutPoint]*wire.TxOut{op: out})

	t1 := wire.NewMsgTx(2)
	t1.AddTxIn(&wire.TxIn{PreviousOutPoint: op, Sequence: wire.MaxTxInSequenceNum})
	t1.AddTxOut(&wire.TxOut{Value: out.Value, PkScript: script1})
	signTestInput(t, h, t1, 0, prevOuts, payerAddr.EncodeAddress())

	require.NoError(t, pool.Submit(h.Store, t1))

	t2 := wire.NewMsgTx(2)
	t2.AddTxIn(&wire.TxIn{PreviousOutPoint: op, Sequence: wire.MaxTxInSequenceNum})
	t2.AddTxOut(&wire.TxOut{Value: out.Value, PkScript: script2})
	signTestInput(t, h, t2, 0, prevOuts, payerAddr.EncodeAddress())

	err = pool.Submit(h.Store, t2)
	require.Error(t, err)
	require.True(t, ledgererrors.Is(err, ledgererrors.KindDoubleSpend))

	entries, err := pool.List(h.Store)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, t1.TxHash().String(), entries[0].Txid)
}

// S4 — a relative locktime not yet satisfied is rejected, and succeeds once
// enough blocks have been mined.
func TestRelativeLockTimeNotSatisfied(t *testing.T) {
	h := New(t)
	defer h.Close()
	pool := newValidatorAndPool(h)

	client := h.Client()

	payerAddr, err := client.GetNewAddress()
	require.NoError(t, err)
	_, err = client.GenerateToAddress(101, payerAddr)
	require.NoError(t, err)

	targetAddr, err := client.GetNewAddress()
	require.NoError(t, err)
	_, err = client.SendToAddress(targetAddr, 10_00000000)
	require.NoError(t, err)
	_, err = client.GenerateToAddress(1, payerAddr)
	require.NoError(t, err)

	height, err := client.GetBlockCount()
	require.NoError(t, err)

	targetScript, err := addr.PkScript(targetAddr)
	require.NoError(t, err)
	op, out := outputAt(t, h, height, targetScript)

	_, err = client.GenerateToAddress(3, payerAddr)
	require.NoError(t, err)

	recvAddr, err := client.GetNewAddress()
	require.NoError(t, err)
	recvScript, err := addr.PkScript(recvAddr)
	require.NoError(t, err)

	prevOuts := txscript.NewMultiPrevOutFetcher(map[wire.OutPoint]*wire.TxOut{op: out})
	const relativeLockBlocks = 10

	buildSpend := func() *wire.MsgTx {
		tx := wire.NewMsgTx(2)
		tx.AddTxIn(&wire.TxIn{PreviousOutPoint: op, Sequence: relativeLockBlocks})
		tx.AddTxOut(&wire.TxOut{Value: out.Value, PkScript: recvScript})
		signTestInput(t, h, tx, 0, prevOuts, targetAddr.EncodeAddress())
		return tx
	}

	spend := buildSpend()
	err = pool.Submit(h.Store, spend)
	require.Error(t, err)
	require.True(t, ledgererrors.Is(err, ledgererrors.KindLockTimeNotSatisfied))

	_, err = client.GenerateToAddress(7, payerAddr)
	require.NoError(t, err)

	spend = buildSpend()
	require.NoError(t, pool.Submit(h.Store, spend))
}

// S5 — an immature coinbase output cannot be spent until it reaches
// CoinbaseMaturity confirmations.
func TestCoinbaseMaturity(t *testing.T) {
	h := New(t)
	defer h.Close()
	pool := newValidatorAndPool(h)

	client := h.Client()

	minerAddr, err := client.GetNewAddress()
	require.NoError(t, err)
	_, err = client.GenerateToAddress(1, minerAddr)
	require.NoError(t, err)

	minerScript, err := addr.PkScript(minerAddr)
	require.NoError(t, err)
	op, out := outputAt(t, h, 1, minerScript)

	recvAddr, err := client.GetNewAddress()
	require.NoError(t, err)
	recvScript, err := addr.PkScript(recvAddr)
	require.NoError(t, err)

	prevOuts := txscript.NewMultiPrevOutFetcher(map[wire.OutPoint]*wire.TxOut{op: out})

	buildSpend := func() *wire.MsgTx {
		tx := wire.NewMsgTx(2)
		tx.AddTxIn(&wire.TxIn{PreviousOutPoint: op, Sequence: wire.MaxTxInSequenceNum})
		tx.AddTxOut(&wire.TxOut{Value: out.Value, PkScript: recvScript})
		signTestInput(t, h, tx, 0, prevOuts, minerAddr.EncodeAddress())
		return tx
	}

	err = pool.Submit(h.Store, buildSpend())
	require.Error(t, err)
	require.True(t, ledgererrors.Is(err, ledgererrors.KindImmatureCoinbase))

	_, err = client.GenerateToAddress(int(h.Params.CoinbaseMaturity), minerAddr)
	require.NoError(t, err)

	require.NoError(t, pool.Submit(h.Store, buildSpend()))
}

// S6 — a valid Taproot key-path signature is accepted; a corrupted one is
// rejected as a script failure.
func TestTaprootKeyPathSpend(t *testing.T) {
	h := New(t)
	defer h.Close()
	pool := newValidatorAndPool(h)

	client := h.Client()

	payerAddr, err := client.GetNewAddress()
	require.NoError(t, err)
	_, err = client.GenerateToAddress(101, payerAddr)
	require.NoError(t, err)

	payerScript, err := addr.PkScript(payerAddr)
	require.NoError(t, err)
	op, out := outputAt(t, h, 1, payerScript)

	recvAddr, err := client.GetNewAddress()
	require.NoError(t, err)
	recvScript, err := addr.PkScript(recvAddr)
	require.NoError(t, err)

	prevOuts := txscript.NewMultiPrevOutFetcher(map[wire.OutPoint]*wire.TxOut{op: out})

	corrupt := wire.NewMsgTx(2)
	corrupt.AddTxIn(&wire.TxIn{PreviousOutPoint: op, Sequence: wire.MaxTxInSequenceNum})
	corrupt.AddTxOut(&wire.TxOut{Value: out.Value, PkScript: recvScript})
	signTestInput(t, h, corrupt, 0, prevOuts, payerAddr.EncodeAddress())
	sig := corrupt.TxIn[0].Witness[0]
	sig[0] ^= 0xff
	corrupt.TxIn[0].Witness = wire.TxWitness{sig}

	err = pool.Submit(h.Store, corrupt)
	require.Error(t, err)
	require.True(t, ledgererrors.Is(err, ledgererrors.KindScriptFailure))

	valid := wire.NewMsgTx(2)
	valid.AddTxIn(&wire.TxIn{PreviousOutPoint: op, Sequence: wire.MaxTxInSequenceNum})
	valid.AddTxOut(&wire.TxOut{Value: out.Value, PkScript: recvScript})
	signTestInput(t, h, valid, 0, prevOuts, payerAddr.EncodeAddress())

	require.NoError(t, pool.Submit(h.Store, valid))
}
