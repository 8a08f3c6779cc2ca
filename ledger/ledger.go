// Package ledger implements the Ledger Facade of spec.md §4.6: the single
// entry point coordinating the Persistence Store, Transaction Validator,
// Mempool, Block Assembler, and address generation behind the NodeClient
// capability.
package ledger

import (
	"sort"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainwayxyz/bitcoinsim/addr"
	"github.com/chainwayxyz/bitcoinsim/assembler"
	"github.com/chainwayxyz/bitcoinsim/internal/build"
	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
	"github.com/chainwayxyz/bitcoinsim/mempool"
	"github.com/chainwayxyz/bitcoinsim/netparams"
	"github.com/chainwayxyz/bitcoinsim/nodeclient"
	"github.com/chainwayxyz/bitcoinsim/script"
	"github.com/chainwayxyz/bitcoinsim/store"
	"github.com/chainwayxyz/bitcoinsim/validate"
)

// log is this package's subsystem logger. It is a no-op until UseLogger
// wires in a real one, following the registry pattern every subsystem in
// this tree uses.
var log = build.NewSubLogger("LEDG", nil)

// UseLogger replaces the package-level logger, letting the daemon route
// ledger log output through its shared rotating writer.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// Ledger implements nodeclient.NodeClient entirely in-process against one
// Persistence Store, satisfying spec.md §6's "in-process client" mode.
type Ledger struct {
	store   *store.Store
	params  *netparams.Params
	val     *validate.Validator
	pool    *mempool.Pool
	asm     *assembler.Assembler
	addrGen *addr.Generator
}

var _ nodeclient.NodeClient = (*Ledger)(nil)

// New constructs a Ledger over st under the given network parameters.
func New(st *store.Store, params *netparams.Params) *Ledger {
	evaluator := script.New()
	val := validate.New(params, evaluator)
	return &Ledger{
		store:   st,
		params:  params,
		val:     val,
		pool:    mempool.New(val),
		asm:     assembler.New(params),
		addrGen: addr.New(params.Net),
	}
}

// SubmitRawTransaction admits tx to the mempool after a full validation
// pass, per spec.md §4.4.
func (l *Ledger) SubmitRawTransaction(tx *wire.MsgTx) (*chainhash.Hash, error) {
	if err := l.pool.Submit(l.store, tx); err != nil {
		return nil, err
	}
	h := tx.TxHash()
	log.Debugf("accepted transaction %v into mempool", h)
	return &h, nil
}

// GetRawTransaction returns a transaction's raw form and block context,
// whether mined or still pending, per spec.md §4.6.
func (l *Ledger) GetRawTransaction(txid string) (*nodeclient.TxInfo, error) {
	var info *nodeclient.TxInfo
	err := l.store.View(func(tx *store.Tx) error {
		rec, err := tx.GetTransaction(txid)
		if err != nil {
			return err
		}

		info = &nodeclient.TxInfo{Tx: rec.MsgTx, InMempool: rec.InMempool}
		if rec.InMempool {
			return nil
		}

		info.BlockHash = rec.BlockID
		tipHeight, err := tx.TipHeight()
		if err != nil {
			return err
		}
		block, err := tx.BlockByID(rec.BlockID)
		if err != nil {
			return err
		}
		info.Confirmations = int64(tipHeight-block.Height) + 1
		return nil
	})
	return info, err
}

// GetBalance sums every unspent, mined output paying one of the wallet's
// generated addresses (spec.md §4.6: mempool outputs do not count toward
// balance until mined). A coinbase output counts only once its block is at
// least CoinbaseMaturity blocks below the tip.
func (l *Ledger) GetBalance() (btcutil.Amount, error) {
	var total int64
	err := l.store.View(func(tx *store.Tx) error {
		tip, err := tx.TipHeight()
		if err != nil {
			return err
		}
		keys, err := tx.ListKeys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			pkScript, err := addr.PkScriptFromKey(k)
			if err != nil {
				return err
			}
			utxos, err := tx.ScanUnspentForScript(pkScript)
			if err != nil {
				return err
			}
			for _, u := range utxos {
				if tip-u.Height < l.params.CoinbaseMaturity {
					prev, err := tx.GetTransaction(u.Outpoint.Hash.String())
					if err != nil {
						return err
					}
					if validate.IsCoinbase(prev.MsgTx) {
						continue
					}
				}
				total += u.Value
			}
		}
		return nil
	})
	return btcutil.Amount(total), err
}

// GetNewAddress generates and persists a fresh Taproot address.
func (l *Ledger) GetNewAddress() (btcutil.Address, error) {
	return l.addrGen.NewAddress(l.store)
}

// SendToAddress builds, signs, and submits a transaction paying amount to
// target from the wallet's available unspent outputs, sending any excess to
// a freshly generated change address. It bypasses no validation rule; it
// simply constructs a transaction the Validator will accept, per spec.md
// §4.6's description of this RPC as "an application built atop the ordinary
// submission path".
func (l *Ledger) SendToAddress(target btcutil.Address, amount btcutil.Amount) (*chainhash.Hash, error) {
	coins, err := l.walletCoins()
	if err != nil {
		return nil, err
	}

	selected, change, err := CoinSelect(amount, coins)
	if err != nil {
		return nil, err
	}

	targetScript, err := addr.PkScript(target)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(2)
	for _, c := range selected {
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: c.OutPoint,
			Sequence:         wire.MaxTxInSequenceNum,
		})
	}
	tx.AddTxOut(&wire.TxOut{Value: int64(amount), PkScript: targetScript})

	if change > 0 {
		changeAddr, err := l.addrGen.NewAddress(l.store)
		if err != nil {
			return nil, err
		}
		changeScript, err := addr.PkScript(changeAddr)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(&wire.TxOut{Value: int64(change), PkScript: changeScript})
	}

	if err := l.signWithWallet(tx, selected); err != nil {
		return nil, err
	}

	return l.SubmitRawTransaction(tx)
}

// GenerateToAddress mines numBlocks blocks, each paying its subsidy to addr,
// and returns the mined block ids in order (spec.md §4.5).
func (l *Ledger) GenerateToAddress(numBlocks int, target btcutil.Address) ([]string, error) {
	pkScript, err := addr.PkScript(target)
	if err != nil {
		return nil, err
	}

	blocks, err := l.asm.GenerateBlocks(l.store, pkScript, numBlocks)
	ids := make([]string, len(blocks))
	for i, b := range blocks {
		ids[i] = b.BlockID
	}
	return ids, err
}

// GetBlockCount returns the current tip height.
func (l *Ledger) GetBlockCount() (int32, error) {
	var height int32
	err := l.store.View(func(tx *store.Tx) error {
		var err error
		height, err = tx.TipHeight()
		return err
	})
	return height, err
}

// GetBestBlockHash returns the current tip's block id.
func (l *Ledger) GetBestBlockHash() (string, error) {
	var hash string
	err := l.store.View(func(tx *store.Tx) error {
		rec, err := tx.BestBlock()
		if err != nil {
			return err
		}
		hash = rec.BlockID
		return nil
	})
	return hash, err
}

// GetBlock returns the full block identified by hash.
func (l *Ledger) GetBlock(hash string) (*nodeclient.BlockInfo, error) {
	var info *nodeclient.BlockInfo
	err := l.store.View(func(tx *store.Tx) error {
		rec, err := tx.BlockByID(hash)
		if err != nil {
			return err
		}
		tip, err := tx.TipHeight()
		if err != nil {
			return err
		}
		info = &nodeclient.BlockInfo{
			BlockHeaderInfo: blockHeaderInfo(rec, tip),
			TxIDs:           rec.TxIDs,
		}
		return nil
	})
	return info, err
}

// GetBlockHeader returns just the header fields of the block identified by
// hash.
func (l *Ledger) GetBlockHeader(hash string) (*nodeclient.BlockHeaderInfo, error) {
	var info nodeclient.BlockHeaderInfo
	err := l.store.View(func(tx *store.Tx) error {
		rec, err := tx.BlockByID(hash)
		if err != nil {
			return err
		}
		tip, err := tx.TipHeight()
		if err != nil {
			return err
		}
		info = blockHeaderInfo(rec, tip)
		return nil
	})
	return &info, err
}

func blockHeaderInfo(rec *store.BlockRecord, tipHeight int32) nodeclient.BlockHeaderInfo {
	return nodeclient.BlockHeaderInfo{
		Hash:          rec.BlockID,
		PreviousHash:  rec.PrevBlockID,
		MerkleRoot:    rec.MerkleRoot,
		Height:        rec.Height,
		Time:          rec.Timestamp,
		Confirmations: int64(tipHeight-rec.Height) + 1,
	}
}

// FundRawTransaction adds wallet inputs and an optional change output to tx
// so that its existing outputs are fully funded, leaving tx unsigned
// (spec.md §4.6).
func (l *Ledger) FundRawTransaction(tx *wire.MsgTx) (*wire.MsgTx, btcutil.Amount, error) {
	var need int64
	for _, out := range tx.TxOut {
		need += out.Value
	}

	coins, err := l.walletCoins()
	if err != nil {
		return nil, 0, err
	}

	selected, change, err := CoinSelect(btcutil.Amount(need), coins)
	if err != nil {
		return nil, 0, err
	}

	funded := tx.Copy()
	for _, c := range selected {
		funded.AddTxIn(&wire.TxIn{
			PreviousOutPoint: c.OutPoint,
			Sequence:         wire.MaxTxInSequenceNum,
		})
	}

	if change > 0 {
		changeAddr, err := l.addrGen.NewAddress(l.store)
		if err != nil {
			return nil, 0, err
		}
		changeScript, err := addr.PkScript(changeAddr)
		if err != nil {
			return nil, 0, err
		}
		funded.AddTxOut(&wire.TxOut{Value: int64(change), PkScript: changeScript})
	}

	return funded, 0, nil
}

// SignRawTransactionWithWallet attaches a key-path Taproot witness to every
// input whose previous output the wallet controls, returning whether every
// input could be signed (spec.md §4.6).
func (l *Ledger) SignRawTransactionWithWallet(tx *wire.MsgTx) (*wire.MsgTx, bool, error) {
	signed := tx.Copy()

	var complete bool
	err := l.store.View(func(storeTx *store.Tx) error {
		keys, err := storeTx.ListKeys()
		if err != nil {
			return err
		}

		fetcher := txscript.NewMultiPrevOutFetcher(nil)
		for _, in := range signed.TxIn {
			out, _, found, err := storeTx.GetOutput(in.PreviousOutPoint)
			if err != nil {
				return err
			}
			if found {
				fetcher.AddPrevOut(in.PreviousOutPoint, out)
			}
		}

		complete, err = signTaprootInputs(signed, fetcher, keys)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return signed, complete, nil
}

// signWithWallet signs every input of tx using the previous outputs
// referenced by selected, which SendToAddress has already pulled from the
// store.
func (l *Ledger) signWithWallet(tx *wire.MsgTx, selected []Coin) error {
	return l.store.View(func(storeTx *store.Tx) error {
		keys, err := storeTx.ListKeys()
		if err != nil {
			return err
		}

		fetcher := txscript.NewMultiPrevOutFetcher(nil)
		for _, c := range selected {
			out := c.TxOut
			fetcher.AddPrevOut(c.OutPoint, &out)
		}

		complete, err := signTaprootInputs(tx, fetcher, keys)
		if err != nil {
			return err
		}
		if !complete {
			return ledgererrors.New(ledgererrors.KindUnknownAddress, "could not sign every input")
		}
		return nil
	})
}

// walletCoins returns every unspent, mined output paying one of the
// wallet's generated addresses, ordered oldest-first so coin selection
// favors maturing change over newer outputs.
func (l *Ledger) walletCoins() ([]Coin, error) {
	var utxos []store.UnspentOutput
	err := l.store.View(func(tx *store.Tx) error {
		keys, err := tx.ListKeys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			pkScript, err := addr.PkScriptFromKey(k)
			if err != nil {
				return err
			}
			found, err := tx.ScanUnspentForScript(pkScript)
			if err != nil {
				return err
			}
			utxos = append(utxos, found...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(utxos, func(i, j int) bool { return utxos[i].Height < utxos[j].Height })
	coins := make([]Coin, 0, len(utxos))
	for _, u := range utxos {
		coins = append(coins, Coin{
			TxOut:    wire.TxOut{Value: u.Value, PkScript: u.PkScript},
			OutPoint: u.Outpoint,
		})
	}
	return coins, nil
}
