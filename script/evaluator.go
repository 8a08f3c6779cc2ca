// Package script implements the Script Evaluator of spec.md §4.2. It is
// pure: given a previous output, the spending transaction, and the index of
// the input under test, it reports whether the locking/unlocking script
// pair is satisfied. It reads no ledger state beyond what the caller
// supplies, and is a thin orchestration layer over btcsuite/btcd/txscript —
// the "external primitives library" spec.md §1 assumes is available.
package script

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
)

// verifyFlags enables every script rule the engine needs for legacy, SegWit
// v0, and Taproot script-path execution. Standard flags are used throughout
// since this is a test double, not a consensus-critical node.
const verifyFlags = txscript.StandardVerifyFlags

// Evaluator checks a single input's locking/unlocking script pair.
type Evaluator struct{}

// New constructs a Script Evaluator. It carries no state.
func New() *Evaluator {
	return &Evaluator{}
}

// EvaluateInput validates the script for tx's input at index inputIndex,
// given prevOuts — a lookup of every outpoint the transaction's inputs (not
// just this one) reference, needed because some sighash algorithms
// (BIP-143, BIP-341) commit to the values/scripts of every input. It
// returns a *ledgererrors.LedgerError with Kind KindScriptFailure on any
// rejection.
func (e *Evaluator) EvaluateInput(
	tx *wire.MsgTx,
	inputIndex int,
	prevOuts *txscript.MultiPrevOutFetcher,
) error {
	if inputIndex < 0 || inputIndex >= len(tx.TxIn) {
		return ledgererrors.ScriptFailure(inputIndex, "input index out of range")
	}

	in := tx.TxIn[inputIndex]
	prevOut := prevOuts.FetchPrevOutput(in.PreviousOutPoint)
	if prevOut == nil {
		return ledgererrors.ScriptFailure(inputIndex, "previous output not supplied to evaluator")
	}

	if isTaprootKeyPathSpend(prevOut.PkScript, in.Witness) {
		if err := e.evaluateTaprootKeyPath(tx, inputIndex, prevOut, prevOuts); err != nil {
			return ledgererrors.ScriptFailure(inputIndex, err.Error())
		}
		return nil
	}

	// Legacy, SegWit v0, and Taproot script-path spends all reduce to
	// running the general-purpose interpreter with the right flags; it
	// already knows how to walk a control block and execute the
	// revealed tapscript leaf.
	sigCache := txscript.NewSigCache(0)
	hashCache := txscript.NewTxSigHashes(tx, prevOuts)

	engine, err := txscript.NewEngine(
		prevOut.PkScript, tx, inputIndex, verifyFlags, sigCache, hashCache,
		prevOut.Value, prevOuts,
	)
	if err != nil {
		return ledgererrors.ScriptFailure(inputIndex, err.Error())
	}

	if err := engine.Execute(); err != nil {
		return ledgererrors.ScriptFailure(inputIndex, err.Error())
	}
	return nil
}

// isTaprootKeyPathSpend reports whether prevPkScript is a Taproot (witness
// v1, 32-byte program) output being spent with the single-element witness
// stack that signals a key-path spend (with or without an optional
// sighash-type trailing byte already stripped by the caller's convention —
// here we test the raw witness shape per BIP-341).
func isTaprootKeyPathSpend(prevPkScript []byte, witness wire.TxWitness) bool {
	if !txscript.IsPayToTaproot(prevPkScript) {
		return false
	}
	switch len(witness) {
	case 1:
		return true
	case 2:
		// An annex may be present as a second stack element prefixed
		// with 0x50; a two-element stack without an annex is treated
		// as a script-path spend and left to the general interpreter.
		return len(witness[1]) > 0 && witness[1][0] == txscript.TaprootAnnexTag
	default:
		return false
	}
}

// evaluateTaprootKeyPath implements the BIP-341 key-path verification
// spec.md §4.2 describes explicitly: derive the tweaked public key from the
// output's 32-byte program, compute the sighash (the default all-inputs,
// all-outputs type for a 64-byte signature, or the type named by the last
// byte of a 65-byte one), and verify a single Schnorr signature.
func (e *Evaluator) evaluateTaprootKeyPath(
	tx *wire.MsgTx,
	inputIndex int,
	prevOut *wire.TxOut,
	prevOuts *txscript.MultiPrevOutFetcher,
) error {
	in := tx.TxIn[inputIndex]

	sigBytes := in.Witness[0]
	hashType := txscript.SigHashDefault
	if len(sigBytes) == 65 {
		hashType = txscript.SigHashType(sigBytes[64])
		sigBytes = sigBytes[:64]
	} else if len(sigBytes) != 64 {
		return fmt.Errorf("invalid schnorr signature length %d", len(sigBytes))
	}

	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("invalid schnorr signature: %w", err)
	}

	tweakedKey, err := schnorr.ParsePubKey(prevOut.PkScript[2:])
	if err != nil {
		return fmt.Errorf("invalid taproot output key: %w", err)
	}

	sigHashes := txscript.NewTxSigHashes(tx, prevOuts)
	sigHash, err := txscript.CalcTaprootSignatureHash(
		sigHashes, hashType, tx, inputIndex, prevOuts,
	)
	if err != nil {
		return fmt.Errorf("computing taproot sighash: %w", err)
	}

	if !sig.Verify(sigHash, tweakedKey) {
		return fmt.Errorf("schnorr signature verification failed")
	}
	return nil
}
