package addr

import (
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"

	"github.com/chainwayxyz/bitcoinsim/netparams"
	"github.com/chainwayxyz/bitcoinsim/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, _, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestNewAddressIsTaprootAndUnique(t *testing.T) {
	st := newTestStore(t)
	gen := New(netparams.Default().Net)

	a1, err := gen.NewAddress(st)
	require.NoError(t, err)
	a2, err := gen.NewAddress(st)
	require.NoError(t, err)

	require.NotEqual(t, a1.EncodeAddress(), a2.EncodeAddress())

	pkScript, err := PkScript(a1)
	require.NoError(t, err)
	require.True(t, txscript.IsPayToTaproot(pkScript))
}

func TestPrivateKeyForAddressRoundTrips(t *testing.T) {
	st := newTestStore(t)
	gen := New(netparams.Default().Net)

	address, err := gen.NewAddress(st)
	require.NoError(t, err)

	priv, err := PrivateKeyForAddress(st, address.EncodeAddress())
	require.NoError(t, err)

	tweaked := txscript.TweakTaprootPrivKey(*priv, nil)
	wantScript, err := PkScript(address)
	require.NoError(t, err)

	gotScript, err := txscript.PayToTaprootScript(tweaked.PubKey())
	require.NoError(t, err)
	require.Equal(t, wantScript, gotScript)
}

func TestPkScriptFromKeyMatchesPkScript(t *testing.T) {
	st := newTestStore(t)
	gen := New(netparams.Default().Net)

	address, err := gen.NewAddress(st)
	require.NoError(t, err)

	var rec *store.KeyRecord
	require.NoError(t, st.View(func(tx *store.Tx) error {
		var err error
		rec, err = tx.KeyByAddress(address.EncodeAddress())
		return err
	}))

	fromKey, err := PkScriptFromKey(rec)
	require.NoError(t, err)
	fromAddr, err := PkScript(address)
	require.NoError(t, err)
	require.Equal(t, fromAddr, fromKey)
}
