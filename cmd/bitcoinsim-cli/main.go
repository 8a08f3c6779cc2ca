// Command bitcoinsim-cli is a thin JSON-RPC client for bitcoinsimd, in the
// spirit of Bitcoin Core's own bitcoin-cli: one subcommand per RPC method,
// pretty-printing whatever the server returns.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

const defaultRPCServer = "127.0.0.1:8332"

func main() {
	app := cli.NewApp()
	app.Name = "bitcoinsim-cli"
	app.Usage = "query and control a bitcoinsimd instance"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rpcserver",
			Value: defaultRPCServer,
			Usage: "host:port of the bitcoinsimd JSON-RPC server",
		},
	}
	app.Commands = []cli.Command{
		sendRawTransactionCommand,
		getRawTransactionCommand,
		sendToAddressCommand,
		getNewAddressCommand,
		getBalanceCommand,
		generateToAddressCommand,
		getBestBlockHashCommand,
		getBlockCommand,
		getBlockHeaderCommand,
		getBlockCountCommand,
		fundRawTransactionCommand,
		signRawTransactionWithWalletCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "[bitcoinsim-cli] %v\n", err)
		os.Exit(1)
	}
}

// actionDecorator wraps a command action so a returned error is reported in
// a consistent, non-zero-exit-status way rather than left to urfave/cli's
// default formatting.
func actionDecorator(f func(*cli.Context) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		if err := f(c); err != nil {
			return fmt.Errorf("%s: %w", c.Command.Name, err)
		}
		return nil
	}
}

// getClient builds a JSON-RPC client pointed at the --rpcserver flag (or its
// default), shared by every command in this package.
func getClient(ctx *cli.Context) *rpcClient {
	server := ctx.GlobalString("rpcserver")
	if server == "" {
		server = defaultRPCServer
	}
	return newRPCClient(server)
}

// printJSON pretty-prints an arbitrary RPC result to stdout.
func printJSON(v interface{}) {
	b, err := marshalIndent(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to format response: %v\n", err)
		return
	}
	fmt.Println(string(b))
}
