package rpc

import (
	"errors"

	"github.com/btcsuite/btcd/btcjson"

	"github.com/chainwayxyz/bitcoinsim/ledgererrors"
)

// translateError maps a ledgererrors.LedgerError's Kind onto a JSON-RPC
// error code in the same neighborhood Bitcoin Core uses for the equivalent
// condition, per spec.md §7's propagation policy: the caller always learns
// which rule was violated, never a generic failure.
func translateError(err error) *btcjson.RPCError {
	var lerr *ledgererrors.LedgerError
	if !errors.As(err, &lerr) {
		return btcjson.NewRPCError(btcjson.ErrRPCInternal, err.Error())
	}

	code := btcjson.ErrRPCInternal
	switch lerr.Kind {
	case ledgererrors.KindTransactionMalformed:
		code = btcjson.ErrRPCDeserialization
	case ledgererrors.KindPreviousOutputMissing, ledgererrors.KindUnknownTransaction:
		code = btcjson.ErrRPCNoTxInfo
	case ledgererrors.KindDoubleSpend:
		code = btcjson.ErrRPCVerify
	case ledgererrors.KindValueOverflow, ledgererrors.KindInsufficientInputValue:
		code = btcjson.ErrRPCVerify
	case ledgererrors.KindScriptFailure:
		code = btcjson.ErrRPCVerifyError
	case ledgererrors.KindLockTimeNotSatisfied:
		code = btcjson.ErrRPCVerifyRejected
	case ledgererrors.KindImmatureCoinbase:
		code = btcjson.ErrRPCVerifyRejected
	case ledgererrors.KindUnknownAddress:
		code = btcjson.ErrRPCInvalidAddressOrKey
	case ledgererrors.KindUnknownBlock:
		code = btcjson.ErrRPCBlockNotFound
	case ledgererrors.KindUnsupportedParameter:
		code = btcjson.ErrRPCInvalidParameter
	case ledgererrors.KindStoreError:
		code = btcjson.ErrRPCInternal
	}

	return btcjson.NewRPCError(code, lerr.Error())
}
