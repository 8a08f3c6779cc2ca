// Package assembler implements the Block Assembler of spec.md §4.5: on
// request, it drains the mempool into a new block, synthesizes the paying
// coinbase, and advances the chain tip.
package assembler

import (
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
	"github.com/chainwayxyz/bitcoinsim/netparams"
	"github.com/chainwayxyz/bitcoinsim/store"
)

// Assembler turns the current mempool into new blocks on demand. It keeps no
// state of its own between calls; every invocation re-reads the tip and
// mempool from the store it is given.
type Assembler struct {
	params *netparams.Params
}

// New constructs an Assembler bound to the given network parameters.
func New(params *netparams.Params) *Assembler {
	return &Assembler{params: params}
}

// GenerateBlocks mines count blocks in sequence, each paying its coinbase
// subsidy to payScript, and returns the newly created block records in
// mined order. Each block is assembled and committed inside its own store
// transaction so a later block can spend an earlier one's coinbase once it
// has matured, and a failure partway through still leaves every
// already-mined block intact.
func (a *Assembler) GenerateBlocks(st *store.Store, payScript []byte, count int) ([]*store.BlockRecord, error) {
	blocks := make([]*store.BlockRecord, 0, count)
	for i := 0; i < count; i++ {
		rec, err := a.assembleOne(st, payScript)
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, rec)
	}
	return blocks, nil
}

func (a *Assembler) assembleOne(st *store.Store, payScript []byte) (*store.BlockRecord, error) {
	genesisTime, err := st.GenesisTime()
	if err != nil {
		return nil, err
	}

	var result *store.BlockRecord

	err = st.Update(func(tx *store.Tx) error {
		tip, err := tx.BestBlock()
		if err != nil {
			return err
		}

		pending, err := tx.ListMempool()
		if err != nil {
			return err
		}

		height := tip.Height + 1
		coinbase := buildCoinbase(a.params.BlockSubsidy, payScript, height)

		txs := make([]*wire.MsgTx, 0, len(pending)+1)
		txs = append(txs, coinbase)

		var spent []wire.OutPoint
		for _, entry := range pending {
			txs = append(txs, entry.MsgTx)
			for _, in := range entry.MsgTx.TxIn {
				spent = append(spent, in.PreviousOutPoint)
			}
		}

		merkleRoot, err := computeMerkleRoot(txs)
		if err != nil {
			return ledgererrors.New(ledgererrors.KindStoreError, err.Error())
		}

		prevBlockID, err := chainhash.NewHashFromStr(tip.BlockID)
		if err != nil {
			return ledgererrors.StoreError(err)
		}

		timestamp := genesisTime + int64(height)*int64(a.params.BlockInterval/time.Second)

		header := store.BuildHeader(*prevBlockID, merkleRoot, timestamp)
		blockID := store.HeaderBlockID(header)

		txids := make([]string, len(txs))
		for i, t := range txs {
			txids[i] = t.TxHash().String()
		}

		rec := &store.BlockRecord{
			Height:      height,
			BlockID:     blockID.String(),
			PrevBlockID: prevBlockID.String(),
			MerkleRoot:  merkleRoot.String(),
			Timestamp:   timestamp,
			MinedAt:     timestamp,
			TxIDs:       txids,
		}

		if err := tx.InsertBlock(rec, txs, spent); err != nil {
			return err
		}

		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// buildCoinbase synthesizes a one-input, one-output coinbase transaction
// paying subsidy to payScript. Its null previous outpoint satisfies
// validate.IsCoinbase; the height is carried in the input's signature script
// only for uniqueness across blocks, mirroring BIP-34 in spirit without
// enforcing it as a consensus rule (spec.md §1 Non-goals).
func buildCoinbase(subsidy int64, payScript []byte, height int32) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)

	sigScript, _ := txscript.NewScriptBuilder().AddInt64(int64(height)).Script()

	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		SignatureScript:  sigScript,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{Value: subsidy, PkScript: payScript})

	return tx
}

// computeMerkleRoot builds the merkle tree over txs (coinbase first) using
// btcd/blockchain's reference construction and returns its root.
func computeMerkleRoot(txs []*wire.MsgTx) (chainhash.Hash, error) {
	wrapped := make([]*btcutil.Tx, len(txs))
	for i, t := range txs {
		wrapped[i] = btcutil.NewTx(t)
	}

	tree := blockchain.BuildMerkleTreeStore(wrapped, false)
	root := tree[len(tree)-1]
	if root == nil {
		return chainhash.Hash{}, ledgererrors.New(ledgererrors.KindStoreError, "nil merkle root")
	}
	return *root, nil
}
