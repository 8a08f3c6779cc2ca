package ledgertest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainwayxyz/bitcoinsim/mempool"
	"github.com/chainwayxyz/bitcoinsim/store"
)

// S1 — a fresh ledger starts at height 0, its own stable genesis id, and an
// empty mempool.
func TestGenesisOnlyState(t *testing.T) {
	h := New(t)
	defer h.Close()

	height, err := h.Client().GetBlockCount()
	require.NoError(t, err)
	require.Equal(t, int32(0), height)

	tip, err := h.Client().GetBestBlockHash()
	require.NoError(t, err)
	require.NotEmpty(t, tip)

	pool := mempool.New(nil)
	entries, err := pool.List(h.Store)
	require.NoError(t, err)
	require.Empty(t, entries)

	// The genesis id is a pure function of the fixed network parameters,
	// so a second fresh ledger under the same parameters agrees with it.
	h2 := New(t)
	defer h2.Close()
	tip2, err := h2.Client().GetBestBlockHash()
	require.NoError(t, err)
	require.Equal(t, tip, tip2)
}

// S2 — a mined, matured coinbase contributes to balance, and a self-payment
// neither gains nor loses coins once it is mined.
func TestSinglePayment(t *testing.T) {
	h := New(t)
	defer h.Close()

	client := h.Client()

	address, err := client.GetNewAddress()
	require.NoError(t, err)

	_, err = client.GenerateToAddress(101, address)
	require.NoError(t, err)

	balance, err := client.GetBalance()
	require.NoError(t, err)
	require.Equal(t, float64(50), balance.ToBTC())

	_, err = client.SendToAddress(address, 10_00000000)
	require.NoError(t, err)

	_, err = client.GenerateToAddress(1, address)
	require.NoError(t, err)

	balance, err = client.GetBalance()
	require.NoError(t, err)
	require.Equal(t, float64(100), balance.ToBTC())
}

// S7 — two ledgers opened at distinct stores never observe each other's
// chain state.
func TestParallelLedgers(t *testing.T) {
	h1 := New(t)
	defer h1.Close()
	h2 := New(t)
	defer h2.Close()

	h1.MineBlocks(5)

	height1, err := h1.Client().GetBlockCount()
	require.NoError(t, err)
	require.Equal(t, int32(5), height1)

	height2, err := h2.Client().GetBlockCount()
	require.NoError(t, err)
	require.Equal(t, int32(0), height2)
}

// Universal invariant 6: mining zero blocks is a no-op.
func TestMineZeroBlocksIsNoOp(t *testing.T) {
	h := New(t)
	defer h.Close()

	before, err := h.Client().GetBlockCount()
	require.NoError(t, err)
	beforeHash, err := h.Client().GetBestBlockHash()
	require.NoError(t, err)

	addr, err := h.Client().GetNewAddress()
	require.NoError(t, err)
	ids, err := h.Client().GenerateToAddress(0, addr)
	require.NoError(t, err)
	require.Empty(t, ids)

	after, err := h.Client().GetBlockCount()
	require.NoError(t, err)
	afterHash, err := h.Client().GetBestBlockHash()
	require.NoError(t, err)

	require.Equal(t, before, after)
	require.Equal(t, beforeHash, afterHash)
}

// Universal invariant 8: block timestamps advance by exactly the block
// interval per height, regardless of wall-clock time spent mining.
func TestBlockTimestampsAreDeterministic(t *testing.T) {
	h := New(t)
	defer h.Close()

	addr, err := h.Client().GetNewAddress()
	require.NoError(t, err)
	_, err = h.Client().GenerateToAddress(3, addr)
	require.NoError(t, err)

	var timestamps []int64
	for height := int32(0); height <= 3; height++ {
		hash, err := blockHashAtHeight(h, height)
		require.NoError(t, err)
		header, err := h.Client().GetBlockHeader(hash)
		require.NoError(t, err)
		timestamps = append(timestamps, header.Time)
	}

	interval := int64(h.Params.BlockInterval.Seconds())
	for i := 1; i < len(timestamps); i++ {
		require.Equal(t, interval, timestamps[i]-timestamps[i-1])
	}
}

func blockHashAtHeight(h *Harness, height int32) (string, error) {
	var hash string
	err := h.Store.View(func(tx *store.Tx) error {
		rec, err := tx.BlockByHeight(height)
		if err != nil {
			return err
		}
		hash = rec.BlockID
		return nil
	})
	return hash, err
}
