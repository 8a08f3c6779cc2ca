// Package ledgererrors defines the typed error taxonomy shared across the
// ledger engine's components. Every rejection a transaction or query can
// incur is represented as a distinct, inspectable variant rather than a bare
// string, so that callers (the RPC facade, the in-process client, tests) can
// branch on the failure kind instead of parsing messages.
package ledgererrors

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
	goerrors "github.com/go-errors/errors"
)

// Kind enumerates the distinct error variants a ledger operation may return.
type Kind int

const (
	// KindTransactionMalformed indicates a structural check failed:
	// no inputs, no outputs, duplicate input outpoints, or an
	// oversized serialization.
	KindTransactionMalformed Kind = iota

	// KindPreviousOutputMissing indicates an input references an
	// outpoint the ledger has no record of.
	KindPreviousOutputMissing

	// KindDoubleSpend indicates an input references an outpoint
	// already consumed, either by a mined transaction or by another
	// transaction already admitted to the mempool.
	KindDoubleSpend

	// KindValueOverflow indicates the transaction's output values sum
	// past the 21-million-coin bound, or an individual output is
	// negative.
	KindValueOverflow

	// KindInsufficientInputValue indicates the sum of input values is
	// less than the sum of output values.
	KindInsufficientInputValue

	// KindScriptFailure indicates the Script Evaluator rejected an
	// input's locking/unlocking script pair.
	KindScriptFailure

	// KindLockTimeNotSatisfied indicates either the absolute nLockTime
	// or a relative (CSV) lock time was not satisfied at the
	// prospective inclusion height.
	KindLockTimeNotSatisfied

	// KindImmatureCoinbase indicates an input spends a coinbase output
	// that has not yet reached the maturity depth.
	KindImmatureCoinbase

	// KindUnknownAddress indicates a query referenced an address the
	// ledger has no key record for.
	KindUnknownAddress

	// KindUnknownTransaction indicates a query referenced a txid the
	// ledger has no record of, mined or mempool.
	KindUnknownTransaction

	// KindUnknownBlock indicates a query referenced a block id or
	// height the ledger has no record of.
	KindUnknownBlock

	// KindStoreError indicates the underlying persistence layer
	// failed. This is treated as fatal: the caller must decide whether
	// to recreate the ledger.
	KindStoreError

	// KindUnsupportedParameter indicates an RPC caller supplied a
	// parameter the mock implementation does not honor.
	KindUnsupportedParameter
)

// String returns a short, stable name for the error kind, suitable for
// logging and for RPC error-code mapping.
func (k Kind) String() string {
	switch k {
	case KindTransactionMalformed:
		return "TransactionMalformed"
	case KindPreviousOutputMissing:
		return "PreviousOutputMissing"
	case KindDoubleSpend:
		return "DoubleSpend"
	case KindValueOverflow:
		return "ValueOverflow"
	case KindInsufficientInputValue:
		return "InsufficientInputValue"
	case KindScriptFailure:
		return "ScriptFailure"
	case KindLockTimeNotSatisfied:
		return "LockTimeNotSatisfied"
	case KindImmatureCoinbase:
		return "ImmatureCoinbase"
	case KindUnknownAddress:
		return "UnknownAddress"
	case KindUnknownTransaction:
		return "UnknownTransaction"
	case KindUnknownBlock:
		return "UnknownBlock"
	case KindStoreError:
		return "StoreError"
	case KindUnsupportedParameter:
		return "UnsupportedParameter"
	default:
		return "Unknown"
	}
}

// LedgerError is the concrete type returned by every ledger component for a
// rejected operation. Components never return bare errors for conditions
// this taxonomy names; they construct a LedgerError so the Ledger Facade can
// roll back its store transaction and hand the typed failure to the caller
// unchanged.
type LedgerError struct {
	Kind Kind

	// Outpoint is set for KindPreviousOutputMissing and KindDoubleSpend.
	Outpoint *wire.OutPoint

	// InputIndex is set for KindScriptFailure.
	InputIndex int

	// LockKind distinguishes "absolute" from "relative" for
	// KindLockTimeNotSatisfied.
	LockKind string

	// Method and Parameter are set for KindUnsupportedParameter.
	Method    string
	Parameter string

	// Reason carries a human-readable detail, e.g. the script engine's
	// rejection message or the underlying store driver error.
	Reason string

	// Err wraps the underlying cause, if any (used for KindStoreError).
	Err error
}

// Error implements the error interface.
func (e *LedgerError) Error() string {
	switch e.Kind {
	case KindPreviousOutputMissing, KindDoubleSpend:
		return fmt.Sprintf("%s: %s", e.Kind, e.Outpoint)
	case KindScriptFailure:
		return fmt.Sprintf("%s: input %d: %s", e.Kind, e.InputIndex, e.Reason)
	case KindLockTimeNotSatisfied:
		return fmt.Sprintf("%s: %s", e.Kind, e.LockKind)
	case KindUnsupportedParameter:
		return fmt.Sprintf("%s: %s.%s", e.Kind, e.Method, e.Parameter)
	case KindStoreError:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return e.Kind.String()
	default:
		if e.Reason != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
		}
		return e.Kind.String()
	}
}

// Unwrap allows errors.Is/errors.As to reach the wrapped cause.
func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a LedgerError of the same Kind, ignoring the
// other fields. This lets callers write errors.Is(err, ledgererrors.New(ledgererrors.KindDoubleSpend, "")).
func (e *LedgerError) Is(target error) bool {
	other, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New constructs a bare LedgerError of the given kind.
func New(kind Kind, reason string) *LedgerError {
	return &LedgerError{Kind: kind, Reason: reason}
}

// PreviousOutputMissing builds the KindPreviousOutputMissing variant.
func PreviousOutputMissing(op wire.OutPoint) *LedgerError {
	return &LedgerError{Kind: KindPreviousOutputMissing, Outpoint: &op}
}

// DoubleSpend builds the KindDoubleSpend variant.
func DoubleSpend(op wire.OutPoint) *LedgerError {
	return &LedgerError{Kind: KindDoubleSpend, Outpoint: &op}
}

// ScriptFailure builds the KindScriptFailure variant.
func ScriptFailure(inputIndex int, reason string) *LedgerError {
	return &LedgerError{Kind: KindScriptFailure, InputIndex: inputIndex, Reason: reason}
}

// LockTimeNotSatisfied builds the KindLockTimeNotSatisfied variant. lockKind
// is either "absolute" or "relative".
func LockTimeNotSatisfied(lockKind string) *LedgerError {
	return &LedgerError{Kind: KindLockTimeNotSatisfied, LockKind: lockKind}
}

// ImmatureCoinbase builds the KindImmatureCoinbase variant.
func ImmatureCoinbase() *LedgerError {
	return &LedgerError{Kind: KindImmatureCoinbase}
}

// UnsupportedParameter builds the KindUnsupportedParameter variant.
func UnsupportedParameter(method, parameter string) *LedgerError {
	return &LedgerError{
		Kind:      KindUnsupportedParameter,
		Method:    method,
		Parameter: parameter,
	}
}

// StoreError wraps an underlying persistence-layer failure. The wrap
// carries a stack trace from the point of failure, since a store error is
// always unexpected and worth more than a one-line message when logged.
func StoreError(err error) *LedgerError {
	return &LedgerError{Kind: KindStoreError, Err: goerrors.Wrap(err, 1)}
}

// Is reports whether err is a LedgerError carrying the given kind.
func Is(err error, kind Kind) bool {
	le, ok := err.(*LedgerError)
	if !ok {
		return false
	}
	return le.Kind == kind
}
