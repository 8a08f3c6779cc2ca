// Package nodeclient defines the NodeClient capability spec.md §6/§9
// describes: a single interface implemented both by the in-process Ledger
// Facade and by client.RealClient, an adapter over a real node's RPC client.
// Code written against NodeClient cannot tell which is behind it.
package nodeclient

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// TxInfo describes a transaction as returned by GetRawTransaction, whether
// mined or still pending.
type TxInfo struct {
	Tx            *wire.MsgTx
	BlockHash     string
	Confirmations int64
	InMempool     bool
}

// BlockHeaderInfo describes a block header as returned by GetBlockHeader.
type BlockHeaderInfo struct {
	Hash          string
	PreviousHash  string
	MerkleRoot    string
	Height        int32
	Time          int64
	Confirmations int64
}

// BlockInfo describes a full block as returned by GetBlock.
type BlockInfo struct {
	BlockHeaderInfo
	TxIDs []string
}

// NodeClient is the capability spec.md §6 exposes in-process and over
// JSON-RPC alike. Every method corresponds 1:1 to one RPC method; argument
// and return shapes follow Bitcoin Core's conventions where one exists.
type NodeClient interface {
	SubmitRawTransaction(tx *wire.MsgTx) (*chainhash.Hash, error)
	GetRawTransaction(txid string) (*TxInfo, error)
	GetBalance() (btcutil.Amount, error)
	GetNewAddress() (btcutil.Address, error)
	SendToAddress(addr btcutil.Address, amount btcutil.Amount) (*chainhash.Hash, error)
	GenerateToAddress(numBlocks int, addr btcutil.Address) ([]string, error)
	GetBlockCount() (int32, error)
	GetBestBlockHash() (string, error)
	GetBlock(hash string) (*BlockInfo, error)
	GetBlockHeader(hash string) (*BlockHeaderInfo, error)
	FundRawTransaction(tx *wire.MsgTx) (*wire.MsgTx, btcutil.Amount, error)
	SignRawTransactionWithWallet(tx *wire.MsgTx) (*wire.MsgTx, bool, error)
}
