package model

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Kind classifies an Error for propagation-policy decisions: branch-fatal
// errors abort one (UserSwap, alternatePool) branch while sibling branches
// continue; point-failures are absorbed inside a single sampling round;
// tx-fatal errors abort every branch for a transaction.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindBlockNotFound
	KindTxNotLanded
	KindEventNotCached
	KindPoolNotFound
	KindCallError
	KindMathError
	KindEvmParseError
	KindSwapReverted
	KindSwapHalted
)

func (k Kind) String() string {
	switch k {
	case KindBlockNotFound:
		return "block_not_found"
	case KindTxNotLanded:
		return "tx_not_landed"
	case KindEventNotCached:
		return "event_not_cached"
	case KindPoolNotFound:
		return "pool_not_found"
	case KindCallError:
		return "call_error"
	case KindMathError:
		return "math_error"
	case KindEvmParseError:
		return "evm_parse_error"
	case KindSwapReverted:
		return "swap_reverted"
	case KindSwapHalted:
		return "swap_halted"
	default:
		return "unknown"
	}
}

// BranchFatal reports whether an error of this kind aborts the whole
// (UserSwap, alternatePool) branch rather than just one sample.
func (k Kind) BranchFatal() bool {
	switch k {
	case KindPoolNotFound, KindCallError, KindMathError, KindEvmParseError:
		return true
	default:
		return false
	}
}

// TxFatal reports whether an error of this kind aborts every branch for a
// transaction.
func (k Kind) TxFatal() bool {
	return k == KindTxNotLanded || k == KindEventNotCached
}

// Error is the engine's uniform error type: a classified kind, a message,
// and an optional wrapped cause, so callers can use errors.Is/errors.As
// against Kind without string matching.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, &Error{Kind: KindX}) match by kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(k Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func ErrBlockNotFound(number uint64) error {
	return newErr(KindBlockNotFound, nil, "block %d not found", number)
}

func ErrTxNotLanded(hash common.Hash) error {
	return newErr(KindTxNotLanded, nil, "receipt missing for tx %s", hash)
}

func ErrEventNotCached(hash common.Hash) error {
	return newErr(KindEventNotCached, nil, "no hint cached for tx %s", hash)
}

func ErrPoolNotFound(tokenA, tokenB common.Address) error {
	return newErr(KindPoolNotFound, nil, "no candidate pool for (%s, %s)", tokenA, tokenB)
}

func ErrCallError(cause error, format string, args ...any) error {
	return newErr(KindCallError, cause, format, args...)
}

func ErrMathError(format string, args ...any) error {
	return newErr(KindMathError, nil, format, args...)
}

func ErrEvmParseError(cause error, format string, args ...any) error {
	return newErr(KindEvmParseError, cause, format, args...)
}

func ErrSwapReverted(reason string) error {
	return newErr(KindSwapReverted, nil, "swap reverted: %s", reason)
}

func ErrSwapHalted(reason string) error {
	return newErr(KindSwapHalted, nil, "swap halted: %s", reason)
}

// ErrChainClientClosed is returned once the chain client has exhausted its
// bounded reconnect budget; it is terminal for all subsequent calls.
var ErrChainClientClosed = errors.New("chain client: reconnect budget exhausted, connection closed")

// ErrAllSwapsReverted is raised when every sample in a search round
// reverted; the search returns it and the branch ends. Its Kind is
// KindSwapReverted, for which Kind.BranchFatal reports false.
var ErrAllSwapsReverted = newErr(KindSwapReverted, nil, "all swaps reverted")

// ErrNoCandidatePools signals that a branch's candidate pool set was empty
// on entry to the search.
var ErrNoCandidatePools = newErr(KindPoolNotFound, nil, "no candidate arb pools")
