// Package ledgertest provides a small in-process test harness for driving a
// Ledger Facade end to end, in the spirit of the teacher's NetworkHarness:
// construct once, drive through its NodeClient surface, and poll for
// eventually-consistent conditions rather than sleeping a fixed duration.
package ledgertest

import (
	"fmt"
	"time"

	"github.com/chainwayxyz/bitcoinsim/ledger"
	"github.com/chainwayxyz/bitcoinsim/netparams"
	"github.com/chainwayxyz/bitcoinsim/nodeclient"
	"github.com/chainwayxyz/bitcoinsim/store"
)

// Harness wraps a single in-process Ledger instance, backed by an in-memory
// store so tests never touch disk.
type Harness struct {
	T      TestingT
	Store  *store.Store
	Ledger *ledger.Ledger
	Params *netparams.Params
}

// TestingT is the subset of *testing.T the harness needs, so it can also be
// driven from a *testing.B or a hand-rolled runner.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...interface{})
}

// New opens a fresh in-memory ledger and wraps it in a Harness.
func New(t TestingT) *Harness {
	t.Helper()

	st, _, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}

	params := netparams.Default()
	return &Harness{
		T:      t,
		Store:  st,
		Ledger: ledger.New(st, params),
		Params: params,
	}
}

// Close releases the harness's underlying store.
func (h *Harness) Close() {
	h.Store.Close()
}

// Client returns the harness's ledger through the same capability interface
// production callers use, so tests never depend on ledger internals.
func (h *Harness) Client() nodeclient.NodeClient {
	return h.Ledger
}

// MineBlocks mines count blocks paying a fresh address, failing the test on
// error, and returns the address that received the subsidy.
func (h *Harness) MineBlocks(count int) string {
	h.T.Helper()

	addr, err := h.Ledger.GetNewAddress()
	if err != nil {
		h.T.Fatalf("getnewaddress: %v", err)
	}

	if _, err := h.Ledger.GenerateToAddress(count, addr); err != nil {
		h.T.Fatalf("generatetoaddress: %v", err)
	}

	return addr.EncodeAddress()
}

// WaitPredicate polls pred at a short interval until it returns true or
// timeout elapses, mirroring the teacher's wait.Predicate helper.
func WaitPredicate(pred func() bool, timeout time.Duration) error {
	const pollInterval = 10 * time.Millisecond

	deadline := time.Now().Add(timeout)
	for {
		if pred() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("predicate not satisfied after %v", timeout)
		}
		time.Sleep(pollInterval)
	}
}
