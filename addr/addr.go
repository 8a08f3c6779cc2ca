// Package addr implements the key generation and address derivation
// spec.md §4.7 describes: every address the ledger hands out is a P2TR
// (Taproot) output key, generated fresh and persisted alongside its private
// key so later signing requests can find it again.
package addr

import (
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
	"github.com/chainwayxyz/bitcoinsim/store"
)

const scriptTypeTaproot = "p2tr"

// Generator creates and persists fresh Taproot key pairs under a fixed
// network parameter set.
type Generator struct {
	net *chaincfg.Params
}

// New constructs a Generator for the given network.
func New(net *chaincfg.Params) *Generator {
	return &Generator{net: net}
}

// NewAddress generates a fresh secp256k1 key pair, derives its BIP-341
// key-path-only P2TR address (no script-path commitment, matching spec.md
// §4.7's "single signer, key path only" scope), persists the pair, and
// returns the address.
func (g *Generator) NewAddress(st *store.Store) (btcutil.Address, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, ledgererrors.StoreError(err)
	}

	addr, _, tweakedPub, err := deriveTaprootAddress(priv, g.net)
	if err != nil {
		return nil, err
	}

	rec := &store.KeyRecord{
		Address:    addr.EncodeAddress(),
		PrivKey:    priv.Serialize(),
		PubKey:     schnorr.SerializePubKey(tweakedPub),
		ScriptType: scriptTypeTaproot,
		CreatedAt:  time.Now().Unix(),
	}

	err = st.Update(func(tx *store.Tx) error {
		return tx.InsertKey(rec)
	})
	if err != nil {
		return nil, err
	}

	return addr, nil
}

// PkScript derives the P2TR output script a Taproot address pays to.
func PkScript(addr btcutil.Address) ([]byte, error) {
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, ledgererrors.New(ledgererrors.KindUnknownAddress, err.Error())
	}
	return script, nil
}

// PkScriptFromKey rebuilds the P2TR output script a generated key pays to,
// directly from its stored tweaked public key, without needing to re-derive
// or decode an address string.
func PkScriptFromKey(rec *store.KeyRecord) ([]byte, error) {
	pub, err := schnorr.ParsePubKey(rec.PubKey)
	if err != nil {
		return nil, ledgererrors.New(ledgererrors.KindUnknownAddress, err.Error())
	}
	script, err := txscript.PayToTaprootScript(pub)
	if err != nil {
		return nil, ledgererrors.New(ledgererrors.KindUnknownAddress, err.Error())
	}
	return script, nil
}

// PrivateKeyForAddress looks up the previously generated private key behind
// address, needed by SignRawTransactionWithWallet.
func PrivateKeyForAddress(st *store.Store, address string) (*btcec.PrivateKey, error) {
	var rec *store.KeyRecord
	err := st.View(func(tx *store.Tx) error {
		var err error
		rec, err = tx.KeyByAddress(address)
		return err
	})
	if err != nil {
		return nil, err
	}
	priv, _ := btcec.PrivKeyFromBytes(rec.PrivKey)
	return priv, nil
}

// deriveTaprootAddress computes the BIP-341 key-path-only tweaked output key
// for priv and wraps it as a chaincfg-aware P2TR address.
func deriveTaprootAddress(priv *btcec.PrivateKey, net *chaincfg.Params) (*btcutil.AddressTaproot, []byte, *btcec.PublicKey, error) {
	internalKey := priv.PubKey()
	tweakedPub := txscript.ComputeTaprootKeyNoScript(internalKey)

	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(tweakedPub), net)
	if err != nil {
		return nil, nil, nil, ledgererrors.New(ledgererrors.KindUnknownAddress, err.Error())
	}

	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, nil, nil, ledgererrors.New(ledgererrors.KindUnknownAddress, err.Error())
	}

	return addr, pkScript, tweakedPub, nil
}
