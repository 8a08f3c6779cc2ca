package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
	"github.com/chainwayxyz/bitcoinsim/nodeclient"
)

// decodeParam unmarshals the i'th positional parameter into dst, treating a
// missing parameter as leaving dst at its zero value.
func decodeParam(params []json.RawMessage, i int, dst interface{}) error {
	if i >= len(params) {
		return nil
	}
	return json.Unmarshal(params[i], dst)
}

// rejectExtra returns an UnsupportedParameter error if the caller supplied
// more positional parameters than this handler understands, per spec.md
// §6's rule that unrecognized parameters are rejected rather than silently
// ignored.
func rejectExtra(method string, params []json.RawMessage, supported int) error {
	if len(params) > supported {
		return ledgererrors.UnsupportedParameter(method, "extra parameter")
	}
	return nil
}

func decodeRawTx(hexStr string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, ledgererrors.New(ledgererrors.KindTransactionMalformed, err.Error())
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, ledgererrors.New(ledgererrors.KindTransactionMalformed, err.Error())
	}
	return tx, nil
}

func encodeRawTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

func handleSendRawTransaction(client nodeclient.NodeClient, _ *chaincfg.Params, params []json.RawMessage) (interface{}, error) {
	if err := rejectExtra("sendrawtransaction", params, 1); err != nil {
		return nil, err
	}
	var hexStr string
	if err := decodeParam(params, 0, &hexStr); err != nil {
		return nil, ledgererrors.New(ledgererrors.KindTransactionMalformed, err.Error())
	}

	tx, err := decodeRawTx(hexStr)
	if err != nil {
		return nil, err
	}

	txid, err := client.SubmitRawTransaction(tx)
	if err != nil {
		return nil, err
	}
	return txid.String(), nil
}

// txResult is the verbose shape returned by getrawtransaction,
// getrawtransactioninfo, and gettransaction alike; this simulator does not
// distinguish a wallet's transaction history from the raw mempool/chain
// view, so all three report the same fields.
type txResult struct {
	Txid          string `json:"txid"`
	Hex           string `json:"hex"`
	BlockHash     string `json:"blockhash,omitempty"`
	Confirmations int64  `json:"confirmations"`
	InMempool     bool   `json:"inmempool"`
}

func handleGetRawTransaction(client nodeclient.NodeClient, _ *chaincfg.Params, params []json.RawMessage) (interface{}, error) {
	if err := rejectExtra("getrawtransaction", params, 2); err != nil {
		return nil, err
	}
	var txid string
	if err := decodeParam(params, 0, &txid); err != nil {
		return nil, ledgererrors.New(ledgererrors.KindTransactionMalformed, err.Error())
	}

	info, err := client.GetRawTransaction(txid)
	if err != nil {
		return nil, err
	}

	hexStr, err := encodeRawTx(info.Tx)
	if err != nil {
		return nil, err
	}

	return txResult{
		Txid:          info.Tx.TxHash().String(),
		Hex:           hexStr,
		BlockHash:     info.BlockHash,
		Confirmations: info.Confirmations,
		InMempool:     info.InMempool,
	}, nil
}

func handleSendToAddress(client nodeclient.NodeClient, net *chaincfg.Params, params []json.RawMessage) (interface{}, error) {
	if err := rejectExtra("sendtoaddress", params, 2); err != nil {
		return nil, err
	}
	var addrStr string
	var amountBTC float64
	if err := decodeParam(params, 0, &addrStr); err != nil {
		return nil, ledgererrors.New(ledgererrors.KindUnknownAddress, err.Error())
	}
	if err := decodeParam(params, 1, &amountBTC); err != nil {
		return nil, ledgererrors.New(ledgererrors.KindValueOverflow, err.Error())
	}

	address, err := decodeAddress(addrStr, net)
	if err != nil {
		return nil, err
	}
	amount, err := btcutil.NewAmount(amountBTC)
	if err != nil {
		return nil, ledgererrors.New(ledgererrors.KindValueOverflow, err.Error())
	}

	txid, err := client.SendToAddress(address, amount)
	if err != nil {
		return nil, err
	}
	return txid.String(), nil
}

func handleGetNewAddress(client nodeclient.NodeClient, _ *chaincfg.Params, params []json.RawMessage) (interface{}, error) {
	if err := rejectExtra("getnewaddress", params, 0); err != nil {
		return nil, err
	}
	address, err := client.GetNewAddress()
	if err != nil {
		return nil, err
	}
	return address.EncodeAddress(), nil
}

func handleGetBalance(client nodeclient.NodeClient, _ *chaincfg.Params, params []json.RawMessage) (interface{}, error) {
	if err := rejectExtra("getbalance", params, 0); err != nil {
		return nil, err
	}
	balance, err := client.GetBalance()
	if err != nil {
		return nil, err
	}
	return balance.ToBTC(), nil
}

func handleGenerateToAddress(client nodeclient.NodeClient, net *chaincfg.Params, params []json.RawMessage) (interface{}, error) {
	if err := rejectExtra("generatetoaddress", params, 2); err != nil {
		return nil, err
	}
	var numBlocks int
	var addrStr string
	if err := decodeParam(params, 0, &numBlocks); err != nil {
		return nil, ledgererrors.New(ledgererrors.KindTransactionMalformed, err.Error())
	}
	if err := decodeParam(params, 1, &addrStr); err != nil {
		return nil, ledgererrors.New(ledgererrors.KindUnknownAddress, err.Error())
	}

	address, err := decodeAddress(addrStr, net)
	if err != nil {
		return nil, err
	}

	return client.GenerateToAddress(numBlocks, address)
}

func handleGetBestBlockHash(client nodeclient.NodeClient, _ *chaincfg.Params, params []json.RawMessage) (interface{}, error) {
	if err := rejectExtra("getbestblockhash", params, 0); err != nil {
		return nil, err
	}
	return client.GetBestBlockHash()
}

func handleGetBlockCount(client nodeclient.NodeClient, _ *chaincfg.Params, params []json.RawMessage) (interface{}, error) {
	if err := rejectExtra("getblockcount", params, 0); err != nil {
		return nil, err
	}
	return client.GetBlockCount()
}

func handleGetBlock(client nodeclient.NodeClient, _ *chaincfg.Params, params []json.RawMessage) (interface{}, error) {
	if err := rejectExtra("getblock", params, 1); err != nil {
		return nil, err
	}
	var hash string
	if err := decodeParam(params, 0, &hash); err != nil {
		return nil, ledgererrors.New(ledgererrors.KindUnknownBlock, err.Error())
	}
	return client.GetBlock(hash)
}

func handleGetBlockHeader(client nodeclient.NodeClient, _ *chaincfg.Params, params []json.RawMessage) (interface{}, error) {
	if err := rejectExtra("getblockheader", params, 1); err != nil {
		return nil, err
	}
	var hash string
	if err := decodeParam(params, 0, &hash); err != nil {
		return nil, ledgererrors.New(ledgererrors.KindUnknownBlock, err.Error())
	}
	return client.GetBlockHeader(hash)
}

func handleFundRawTransaction(client nodeclient.NodeClient, _ *chaincfg.Params, params []json.RawMessage) (interface{}, error) {
	if err := rejectExtra("fundrawtransaction", params, 1); err != nil {
		return nil, err
	}
	var hexStr string
	if err := decodeParam(params, 0, &hexStr); err != nil {
		return nil, ledgererrors.New(ledgererrors.KindTransactionMalformed, err.Error())
	}

	tx, err := decodeRawTx(hexStr)
	if err != nil {
		return nil, err
	}

	funded, fee, err := client.FundRawTransaction(tx)
	if err != nil {
		return nil, err
	}

	fundedHex, err := encodeRawTx(funded)
	if err != nil {
		return nil, err
	}

	return struct {
		Hex string  `json:"hex"`
		Fee float64 `json:"fee"`
	}{Hex: fundedHex, Fee: fee.ToBTC()}, nil
}

func handleSignRawTransactionWithWallet(client nodeclient.NodeClient, _ *chaincfg.Params, params []json.RawMessage) (interface{}, error) {
	if err := rejectExtra("signrawtransactionwithwallet", params, 1); err != nil {
		return nil, err
	}
	var hexStr string
	if err := decodeParam(params, 0, &hexStr); err != nil {
		return nil, ledgererrors.New(ledgererrors.KindTransactionMalformed, err.Error())
	}

	tx, err := decodeRawTx(hexStr)
	if err != nil {
		return nil, err
	}

	signed, complete, err := client.SignRawTransactionWithWallet(tx)
	if err != nil {
		return nil, err
	}

	signedHex, err := encodeRawTx(signed)
	if err != nil {
		return nil, err
	}

	return struct {
		Hex      string `json:"hex"`
		Complete bool   `json:"complete"`
	}{Hex: signedHex, Complete: complete}, nil
}

func decodeAddress(addrStr string, net *chaincfg.Params) (btcutil.Address, error) {
	address, err := btcutil.DecodeAddress(addrStr, net)
	if err != nil {
		return nil, ledgererrors.New(ledgererrors.KindUnknownAddress, err.Error())
	}
	return address, nil
}
