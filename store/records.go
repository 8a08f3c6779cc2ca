package store

import "github.com/btcsuite/btcd/wire"

// BlockRecord is the persisted representation of a block, matching
// spec.md §3's Block record.
type BlockRecord struct {
	Height      int32
	BlockID     string
	PrevBlockID string
	MerkleRoot  string
	Timestamp   int64
	MinedAt     int64
	TxIDs       []string
}

// TxRecord is the persisted representation of a transaction, matching
// spec.md §3's Transaction record. BlockID and Position are empty/zero
// while the transaction lives in the mempool.
type TxRecord struct {
	Txid       string
	Wtxid      string
	Raw        []byte
	BlockID    string
	Position   int
	InMempool  bool
	MsgTx      *wire.MsgTx
	MempoolSeq int64
}

// KeyRecord is the persisted representation of a generated key pair,
// matching spec.md §3's Key material record.
type KeyRecord struct {
	Address    string
	PrivKey    []byte
	PubKey     []byte
	ScriptType string
	CreatedAt  int64
}

// UnspentOutput describes one output a ScanUnspentForScript call found that
// has not yet been spent.
type UnspentOutput struct {
	Outpoint      wire.OutPoint
	Value         int64
	PkScript      []byte
	Height        int32
	MempoolOnly   bool
}
