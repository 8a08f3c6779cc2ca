// Package client implements the "real node" sibling of the Ledger Facade:
// a nodeclient.NodeClient backed by an actual Bitcoin-family node over RPC,
// so code written against the capability cannot tell which is behind it
// (spec.md §9).
package client

import (
	"bytes"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
	"github.com/chainwayxyz/bitcoinsim/nodeclient"
)

// RealClient adapts rpcclient.Client to the nodeclient.NodeClient
// capability.
type RealClient struct {
	rpc *rpcclient.Client
}

var _ nodeclient.NodeClient = (*RealClient)(nil)

// Connect dials a real node's RPC endpoint with the given connection
// config. It registers no notification handlers, since this adapter only
// exposes the synchronous request/response methods NodeClient needs.
func Connect(cfg *rpcclient.ConnConfig) (*RealClient, error) {
	rpc, err := rpcclient.New(cfg, nil)
	if err != nil {
		return nil, ledgererrors.StoreError(err)
	}
	return &RealClient{rpc: rpc}, nil
}

// Shutdown disconnects from the node.
func (c *RealClient) Shutdown() {
	c.rpc.Shutdown()
}

func (c *RealClient) SubmitRawTransaction(tx *wire.MsgTx) (*chainhash.Hash, error) {
	return c.rpc.SendRawTransaction(tx, false)
}

func (c *RealClient) GetRawTransaction(txid string) (*nodeclient.TxInfo, error) {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, ledgererrors.New(ledgererrors.KindTransactionMalformed, err.Error())
	}

	verbose, err := c.rpc.GetRawTransactionVerbose(hash)
	if err != nil {
		return nil, ledgererrors.New(ledgererrors.KindUnknownTransaction, err.Error())
	}

	tx, err := c.rpc.GetRawTransaction(hash)
	if err != nil {
		return nil, ledgererrors.New(ledgererrors.KindUnknownTransaction, err.Error())
	}

	return &nodeclient.TxInfo{
		Tx:            tx.MsgTx(),
		BlockHash:     verbose.BlockHash,
		Confirmations: int64(verbose.Confirmations),
		InMempool:     verbose.BlockHash == "",
	}, nil
}

func (c *RealClient) GetBalance() (btcutil.Amount, error) {
	return c.rpc.GetBalance("*")
}

func (c *RealClient) GetNewAddress() (btcutil.Address, error) {
	return c.rpc.GetNewAddress("")
}

func (c *RealClient) SendToAddress(addr btcutil.Address, amount btcutil.Amount) (*chainhash.Hash, error) {
	return c.rpc.SendToAddress(addr, amount)
}

func (c *RealClient) GenerateToAddress(numBlocks int, addr btcutil.Address) ([]string, error) {
	hashes, err := c.rpc.GenerateToAddress(int64(numBlocks), addr, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hashes))
	for i, h := range hashes {
		ids[i] = h.String()
	}
	return ids, nil
}

func (c *RealClient) GetBlockCount() (int32, error) {
	count, err := c.rpc.GetBlockCount()
	return int32(count), err
}

func (c *RealClient) GetBestBlockHash() (string, error) {
	hash, err := c.rpc.GetBestBlockHash()
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

func (c *RealClient) GetBlock(hash string) (*nodeclient.BlockInfo, error) {
	blockHash, err := chainhash.NewHashFromStr(hash)
	if err != nil {
		return nil, ledgererrors.New(ledgererrors.KindUnknownBlock, err.Error())
	}

	verbose, err := c.rpc.GetBlockVerbose(blockHash)
	if err != nil {
		return nil, ledgererrors.New(ledgererrors.KindUnknownBlock, err.Error())
	}

	return &nodeclient.BlockInfo{
		BlockHeaderInfo: nodeclient.BlockHeaderInfo{
			Hash:          verbose.Hash,
			PreviousHash:  verbose.PreviousHash,
			MerkleRoot:    verbose.MerkleRoot,
			Height:        verbose.Height,
			Time:          verbose.Time,
			Confirmations: int64(verbose.Confirmations),
		},
		TxIDs: verbose.Tx,
	}, nil
}

func (c *RealClient) GetBlockHeader(hash string) (*nodeclient.BlockHeaderInfo, error) {
	blockHash, err := chainhash.NewHashFromStr(hash)
	if err != nil {
		return nil, ledgererrors.New(ledgererrors.KindUnknownBlock, err.Error())
	}

	header, err := c.rpc.GetBlockHeaderVerbose(blockHash)
	if err != nil {
		return nil, ledgererrors.New(ledgererrors.KindUnknownBlock, err.Error())
	}

	return &nodeclient.BlockHeaderInfo{
		Hash:          header.Hash,
		PreviousHash:  header.PreviousHash,
		MerkleRoot:    header.MerkleRoot,
		Height:        header.Height,
		Time:          header.Time,
		Confirmations: int64(header.Confirmations),
	}, nil
}

func (c *RealClient) FundRawTransaction(tx *wire.MsgTx) (*wire.MsgTx, btcutil.Amount, error) {
	result, err := c.rpc.FundRawTransaction(tx, btcjson.FundRawTransactionOpts{}, nil)
	if err != nil {
		return nil, 0, err
	}

	funded := wire.NewMsgTx(wire.TxVersion)
	if err := funded.Deserialize(bytes.NewReader(result.Transaction)); err != nil {
		return nil, 0, ledgererrors.New(ledgererrors.KindTransactionMalformed, err.Error())
	}

	return funded, result.Fee, nil
}

func (c *RealClient) SignRawTransactionWithWallet(tx *wire.MsgTx) (*wire.MsgTx, bool, error) {
	signed, complete, err := c.rpc.SignRawTransactionWithWallet(tx)
	if err != nil {
		return nil, false, err
	}
	return signed, complete, nil
}
