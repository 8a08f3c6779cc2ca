package ledger

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/chainwayxyz/bitcoinsim/addr"
	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
	"github.com/chainwayxyz/bitcoinsim/netparams"
	"github.com/chainwayxyz/bitcoinsim/store"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	st, _, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, netparams.Default())
}

func TestGetBalanceStartsAtZero(t *testing.T) {
	l := newTestLedger(t)
	balance, err := l.GetBalance()
	require.NoError(t, err)
	require.EqualValues(t, 0, balance)
}

func TestGetBalanceReflectsMinedCoinbase(t *testing.T) {
	l := newTestLedger(t)

	minerAddr, err := l.GetNewAddress()
	require.NoError(t, err)
	// Only the first block's coinbase has matured at this tip.
	_, err = l.GenerateToAddress(int(l.params.CoinbaseMaturity)+1, minerAddr)
	require.NoError(t, err)

	balance, err := l.GetBalance()
	require.NoError(t, err)
	require.EqualValues(t, l.params.BlockSubsidy, balance)
}

func TestFundRawTransactionAddsInputsForRequestedOutputs(t *testing.T) {
	l := newTestLedger(t)

	minerAddr, err := l.GetNewAddress()
	require.NoError(t, err)
	_, err = l.GenerateToAddress(int(l.params.CoinbaseMaturity)+1, minerAddr)
	require.NoError(t, err)

	recvAddr, err := l.GetNewAddress()
	require.NoError(t, err)
	recvScript, err := addr.PkScript(recvAddr)
	require.NoError(t, err)

	want := l.params.BlockSubsidy / 2
	tx := wire.NewMsgTx(2)
	tx.AddTxOut(&wire.TxOut{Value: want, PkScript: recvScript})

	funded, fee, err := l.FundRawTransaction(tx)
	require.NoError(t, err)
	require.EqualValues(t, 0, fee)
	require.NotEmpty(t, funded.TxIn, "funding must add at least one input")

	var total int64
	for _, in := range funded.TxIn {
		value, found := lookupOutputValue(t, l, in.PreviousOutPoint)
		require.True(t, found)
		total += value
	}
	require.GreaterOrEqual(t, total, want)
}

func TestGetRawTransactionUnknownTxidFails(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.GetRawTransaction("00")
	require.Error(t, err)
}

func TestGetBlockUnknownHashFails(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.GetBlock("not-a-real-block-id")
	require.Error(t, err)
	require.True(t, ledgererrors.Is(err, ledgererrors.KindUnknownBlock))
}

func TestGetBlockHeaderMatchesGetBlock(t *testing.T) {
	l := newTestLedger(t)

	minerAddr, err := l.GetNewAddress()
	require.NoError(t, err)
	ids, err := l.GenerateToAddress(1, minerAddr)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	block, err := l.GetBlock(ids[0])
	require.NoError(t, err)
	header, err := l.GetBlockHeader(ids[0])
	require.NoError(t, err)

	require.Equal(t, block.BlockHeaderInfo, *header)
}

// lookupOutputValue is a small test-only helper kept local to this file
// rather than exported, since nothing outside tests needs it.
func lookupOutputValue(t *testing.T, l *Ledger, op wire.OutPoint) (int64, bool) {
	t.Helper()
	var value int64
	var found bool
	require.NoError(t, l.store.View(func(tx *store.Tx) error {
		o, _, f, err := tx.GetOutput(op)
		if err != nil || !f {
			return err
		}
		value = o.Value
		found = f
		return nil
	}))
	return value, found
}
