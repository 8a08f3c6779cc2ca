// Package netparams pins the sandboxed node to a single, fixed network
// parameter set and the handful of consensus constants the Ledger Engine
// needs (subsidy, coinbase maturity, block interval). Unlike a production
// node, an instance never switches networks at runtime.
package netparams

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg"
)

// Params bundles the btcsuite network parameters used for address encoding
// with the simulator-specific constants spec.md §4.5 and §4.3 describe.
type Params struct {
	// Net is the address-encoding network. The simulator always uses
	// the regression-test parameters: they have no real-world value and
	// their Bech32 HRP ("bcrt") makes accidental mainnet confusion
	// obvious.
	Net *chaincfg.Params

	// BlockSubsidy is the fixed coinbase payout awarded to every mined
	// block. Halving is out of scope (spec.md §9 Open Questions); the
	// subsidy never changes.
	BlockSubsidy int64

	// CoinbaseMaturity is the number of confirmations a coinbase output
	// must accumulate before it can be spent.
	CoinbaseMaturity int32

	// BlockInterval is the fixed nominal spacing between mined blocks,
	// measured from the genesis timestamp.
	BlockInterval time.Duration

	// MaxTxSize bounds the serialized size of an accepted transaction.
	MaxTxSize int

	// MaxMoney is the 21-million-coin supply bound, expressed in
	// satoshis.
	MaxMoney int64
}

// Default returns the parameter set every bitcoinsim instance uses.
func Default() *Params {
	return &Params{
		Net:              &chaincfg.RegressionNetParams,
		BlockSubsidy:     50 * 1e8,
		CoinbaseMaturity: 100,
		BlockInterval:    10 * time.Minute,
		MaxTxSize:        4_000_000,
		MaxMoney:         21_000_000 * 1e8,
	}
}
