package ledger

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// ErrInsufficientFunds is returned when the wallet's unspent outputs cannot
// cover a requested spend amount.
type ErrInsufficientFunds struct {
	amountAvailable btcutil.Amount
	amountSelected  btcutil.Amount
}

// Error returns a human readable string describing the error.
func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: need %v, only have %v available",
		e.amountAvailable, e.amountSelected)
}

// Coin is a spendable unspent output, combining the output itself with the
// outpoint that produced it.
type Coin struct {
	wire.TxOut
	wire.OutPoint
}

// CoinSelect greedily selects coins until their sum covers amt, returning
// the selected coins and the excess that becomes the change output. There is
// no fee market to account for (spec.md §1 Non-goals), so unlike the
// fee-rate-aware selection this is modeled on, no iterative re-estimation is
// needed.
func CoinSelect(amt btcutil.Amount, coins []Coin) ([]Coin, btcutil.Amount, error) {
	var selected btcutil.Amount
	for i, coin := range coins {
		selected += btcutil.Amount(coin.Value)
		if selected >= amt {
			return coins[:i+1], selected - amt, nil
		}
	}
	return nil, 0, &ErrInsufficientFunds{amountAvailable: amt, amountSelected: selected}
}
