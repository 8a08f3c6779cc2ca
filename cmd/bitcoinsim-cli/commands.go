package main

import (
	"fmt"

	"github.com/urfave/cli"
)

var sendRawTransactionCommand = cli.Command{
	Name:      "sendrawtransaction",
	Usage:     "Submit a signed raw transaction to the mempool.",
	ArgsUsage: "hex",
	Action:    actionDecorator(sendRawTransaction),
}

func sendRawTransaction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "sendrawtransaction")
	}

	var txid string
	err := getClient(ctx).call("sendrawtransaction", []interface{}{ctx.Args().Get(0)}, &txid)
	if err != nil {
		return err
	}
	printJSON(txid)
	return nil
}

var getRawTransactionCommand = cli.Command{
	Name:      "getrawtransaction",
	Usage:     "Look up a transaction by txid.",
	ArgsUsage: "txid",
	Action:    actionDecorator(getRawTransaction),
}

func getRawTransaction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "getrawtransaction")
	}

	var result interface{}
	err := getClient(ctx).call("getrawtransaction", []interface{}{ctx.Args().Get(0)}, &result)
	if err != nil {
		return err
	}
	printJSON(result)
	return nil
}

var sendToAddressCommand = cli.Command{
	Name:      "sendtoaddress",
	Usage:     "Send an amount, in BTC, to an address.",
	ArgsUsage: "address amount",
	Action:    actionDecorator(sendToAddress),
}

func sendToAddress(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "sendtoaddress")
	}

	var amount float64
	if _, err := fmt.Sscanf(ctx.Args().Get(1), "%f", &amount); err != nil {
		return fmt.Errorf("invalid amount: %v", err)
	}

	var txid string
	params := []interface{}{ctx.Args().Get(0), amount}
	if err := getClient(ctx).call("sendtoaddress", params, &txid); err != nil {
		return err
	}
	printJSON(txid)
	return nil
}

var getNewAddressCommand = cli.Command{
	Name:   "getnewaddress",
	Usage:  "Generate a new wallet address.",
	Action: actionDecorator(getNewAddress),
}

func getNewAddress(ctx *cli.Context) error {
	var address string
	if err := getClient(ctx).call("getnewaddress", nil, &address); err != nil {
		return err
	}
	printJSON(address)
	return nil
}

var getBalanceCommand = cli.Command{
	Name:   "getbalance",
	Usage:  "Report the wallet's total confirmed balance, in BTC.",
	Action: actionDecorator(getBalance),
}

func getBalance(ctx *cli.Context) error {
	var balance float64
	if err := getClient(ctx).call("getbalance", nil, &balance); err != nil {
		return err
	}
	printJSON(balance)
	return nil
}

var generateToAddressCommand = cli.Command{
	Name:      "generatetoaddress",
	Usage:     "Mine numblocks blocks, paying the subsidy to address.",
	ArgsUsage: "numblocks address",
	Action:    actionDecorator(generateToAddress),
}

func generateToAddress(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "generatetoaddress")
	}

	var numBlocks int
	if _, err := fmt.Sscanf(ctx.Args().Get(0), "%d", &numBlocks); err != nil {
		return fmt.Errorf("invalid numblocks: %v", err)
	}

	var hashes []string
	params := []interface{}{numBlocks, ctx.Args().Get(1)}
	if err := getClient(ctx).call("generatetoaddress", params, &hashes); err != nil {
		return err
	}
	printJSON(hashes)
	return nil
}

var getBestBlockHashCommand = cli.Command{
	Name:   "getbestblockhash",
	Usage:  "Report the tip block's hash.",
	Action: actionDecorator(getBestBlockHash),
}

func getBestBlockHash(ctx *cli.Context) error {
	var hash string
	if err := getClient(ctx).call("getbestblockhash", nil, &hash); err != nil {
		return err
	}
	printJSON(hash)
	return nil
}

var getBlockCountCommand = cli.Command{
	Name:   "getblockcount",
	Usage:  "Report the tip block's height.",
	Action: actionDecorator(getBlockCount),
}

func getBlockCount(ctx *cli.Context) error {
	var height int32
	if err := getClient(ctx).call("getblockcount", nil, &height); err != nil {
		return err
	}
	printJSON(height)
	return nil
}

var getBlockCommand = cli.Command{
	Name:      "getblock",
	Usage:     "Look up a block by hash.",
	ArgsUsage: "hash",
	Action:    actionDecorator(getBlock),
}

func getBlock(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "getblock")
	}

	var result interface{}
	if err := getClient(ctx).call("getblock", []interface{}{ctx.Args().Get(0)}, &result); err != nil {
		return err
	}
	printJSON(result)
	return nil
}

var getBlockHeaderCommand = cli.Command{
	Name:      "getblockheader",
	Usage:     "Look up a block header by hash.",
	ArgsUsage: "hash",
	Action:    actionDecorator(getBlockHeader),
}

func getBlockHeader(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "getblockheader")
	}

	var result interface{}
	if err := getClient(ctx).call("getblockheader", []interface{}{ctx.Args().Get(0)}, &result); err != nil {
		return err
	}
	printJSON(result)
	return nil
}

var fundRawTransactionCommand = cli.Command{
	Name:      "fundrawtransaction",
	Usage:     "Add wallet inputs to an unfunded raw transaction.",
	ArgsUsage: "hex",
	Action:    actionDecorator(fundRawTransaction),
}

func fundRawTransaction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "fundrawtransaction")
	}

	var result interface{}
	if err := getClient(ctx).call("fundrawtransaction", []interface{}{ctx.Args().Get(0)}, &result); err != nil {
		return err
	}
	printJSON(result)
	return nil
}

var signRawTransactionWithWalletCommand = cli.Command{
	Name:      "signrawtransactionwithwallet",
	Usage:     "Sign a raw transaction's wallet-owned inputs.",
	ArgsUsage: "hex",
	Action:    actionDecorator(signRawTransactionWithWallet),
}

func signRawTransactionWithWallet(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "signrawtransactionwithwallet")
	}

	var result interface{}
	err := getClient(ctx).call("signrawtransactionwithwallet", []interface{}{ctx.Args().Get(0)}, &result)
	if err != nil {
		return err
	}
	printJSON(result)
	return nil
}
