// Package model holds the data types, bit-exact constants, and error
// taxonomy shared across every stage of the arbitrage simulation pipeline.
package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Log is one EVM log entry carried by a Hint. Topics and data may be
// partially redacted by the upstream relay.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// Hint is a partially-redacted notification of a landed transaction:
// log addresses and topics, not necessarily full data or calldata.
// Produced upstream, immutable.
type Hint struct {
	TxHash      common.Hash
	BlockNumber uint64
	Timestamp   uint64
	Logs        []Log
}

// TokenPair names the two legs of every UserSwap: the WETH leg and the
// other token.
type TokenPair struct {
	Weth  common.Address
	Token common.Address
}

// PoolRef identifies one AMM pool by address and pricing variant.
type PoolRef struct {
	Address common.Address
	Variant PoolVariant
}

// UserSwap is one derived swap leg of a landed user transaction. A hint
// may yield several swaps (several matched logs). Invariant: WETH is
// always one of TokenIn/TokenOut.
type UserSwap struct {
	PoolVariant     PoolVariant
	TokenIn         common.Address
	TokenOut        common.Address
	Amount0Sent     *big.Int
	Amount1Sent     *big.Int
	Token0IsWeth    bool
	Pool            common.Address
	PostTradePrice  *big.Int
	Tokens          TokenPair
	CandidateArbPools []PoolRef
}

// BlockContext is the immutable block-level data an evaluation runs
// against.
type BlockContext struct {
	Number        uint64
	Timestamp     uint64
	BaseFeePerGas *big.Int
	GasLimit      uint64
	GasUsed       uint64
}

// StorageKey addresses one (account, slot) pair inside a StateDiff.
type StorageKey struct {
	Address common.Address
	Slot    common.Hash
}

// StateDiff is the touched-account/slot set produced by tracing every
// transaction in a block, in first-seen (i.e. pre-tx) order. It is never
// trusted for concrete values — only used to warm the fork cache; concrete
// values are always re-fetched at block N-1.
type StateDiff struct {
	Touched []StorageKey
}

// ForkAccount is the Fork EVM cache's in-memory account representation.
// Its lifetime is exactly one simulation.
type ForkAccount struct {
	Balance  *big.Int
	Nonce    uint64
	CodeHash common.Hash
	Code     []byte
	Storage  map[common.Hash]common.Hash
}

// BraindanceResult is the outcome of one (UserSwap, alternatePool) branch
// of the arb search.
type BraindanceResult struct {
	AmountIn    *big.Int
	BalanceEnd  *big.Int
	Profit      *big.Int
	StartPool   common.Address
	EndPool     common.Address
	StartVariant PoolVariant
	EndVariant   PoolVariant
}

// SimArbResult pairs the user's original trade with the backrun the
// engine found for it.
type SimArbResult struct {
	UserTrade    UserSwap
	BackrunTrade BraindanceResult
}

// SimArbBatch is the published record for one hint: every branch that
// terminated non-trivially, plus the maximum profit among them.
type SimArbBatch struct {
	Event     Hint
	Results   []SimArbResult
	MaxProfit *big.Int
}

// StoredArbsRange describes the block/timestamp span a set of previously
// stored SimArbBatches covers; used by an out-of-core sink reader, not by
// the orchestrator itself (see DESIGN.md, "Polymorphism over sinks").
type StoredArbsRange struct {
	FromBlock     uint64
	ToBlock       uint64
	FromTimestamp uint64
	ToTimestamp   uint64
}

// Profit computes max(0, balanceEnd - startingBalance), the single profit
// convention fixed by the engine (see Open Question 1 in DESIGN.md).
func Profit(balanceEnd, startingBalance *big.Int) *big.Int {
	p := new(big.Int).Sub(balanceEnd, startingBalance)
	if p.Sign() < 0 {
		return big.NewInt(0)
	}
	return p
}
