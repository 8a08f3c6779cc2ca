package ledger

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainwayxyz/bitcoinsim/addr"
	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
	"github.com/chainwayxyz/bitcoinsim/store"
)

// signTaprootInputs produces a BIP-341 key-path witness for every input of
// tx whose previous output's script matches one of the wallet's generated
// Taproot keys. prevOuts must already contain every input's previous
// output. It returns false for complete if any input could not be signed
// because no matching key was found.
func signTaprootInputs(tx *wire.MsgTx, prevOuts *txscript.MultiPrevOutFetcher, keys []*store.KeyRecord) (complete bool, err error) {
	sigHashes := txscript.NewTxSigHashes(tx, prevOuts)
	complete = true

	for i, in := range tx.TxIn {
		prevOut := prevOuts.FetchPrevOutput(in.PreviousOutPoint)
		if prevOut == nil {
			complete = false
			continue
		}

		priv, found, err := findKeyForScript(prevOut.PkScript, keys)
		if err != nil {
			return false, err
		}
		if !found {
			complete = false
			continue
		}

		sigHash, err := txscript.CalcTaprootSignatureHash(
			sigHashes, txscript.SigHashDefault, tx, i, prevOuts,
		)
		if err != nil {
			return false, ledgererrors.New(ledgererrors.KindScriptFailure, err.Error())
		}

		tweaked := txscript.TweakTaprootPrivKey(*priv, nil)
		sig, err := schnorr.Sign(tweaked, sigHash)
		if err != nil {
			return false, ledgererrors.New(ledgererrors.KindScriptFailure, err.Error())
		}

		tx.TxIn[i].Witness = wire.TxWitness{sig.Serialize()}
	}

	return complete, nil
}

func findKeyForScript(pkScript []byte, keys []*store.KeyRecord) (*btcec.PrivateKey, bool, error) {
	for _, k := range keys {
		script, err := addr.PkScriptFromKey(k)
		if err != nil {
			return nil, false, err
		}
		if bytes.Equal(script, pkScript) {
			priv, _ := btcec.PrivKeyFromBytes(k.PrivKey)
			return priv, true, nil
		}
	}
	return nil, false, nil
}
