// Package tradeparams classifies each swap a landed user transaction
// performed (from its hint logs and full receipt) into a UserSwap:
// variant, direction, post-trade price, and the set of candidate arb
// pools to backrun it against.
package tradeparams

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/flashbots-run/hindsight/model"
	"github.com/flashbots-run/hindsight/pools"
)

// ReceiptFetcher resolves the full transaction receipt a hint refers to.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Caller is the read-only eth_call surface trade-parameter derivation
// needs in addition to pool discovery's.
type Caller interface {
	pools.Caller
}

var (
	token0Selector   = crypto.Keccak256([]byte("token0()"))[:4]
	token1Selector   = crypto.Keccak256([]byte("token1()"))[:4]
	decimalsSelector = crypto.Keccak256([]byte("decimals()"))[:4]
)

func callAddress(ctx context.Context, c Caller, pool common.Address, selector []byte, blockNumber uint64) (common.Address, error) {
	ret, err := c.Call(ctx, ethereum.CallMsg{To: &pool, Data: selector}, blockNumber)
	if err != nil {
		return common.Address{}, err
	}
	if len(ret) < 32 {
		return common.Address{}, fmt.Errorf("tradeparams: short return for %s", pool)
	}
	return common.BytesToAddress(ret[len(ret)-20:]), nil
}

func callDecimals(ctx context.Context, c Caller, token common.Address, blockNumber uint64) (uint8, error) {
	ret, err := c.Call(ctx, ethereum.CallMsg{To: &token, Data: decimalsSelector}, blockNumber)
	if err != nil {
		return 0, err
	}
	if len(ret) < 32 {
		return 0, fmt.Errorf("tradeparams: short decimals return for %s", token)
	}
	return uint8(new(big.Int).SetBytes(ret).Uint64()), nil
}

// findMatchingLog locates the receipt log corresponding to a redacted hint
// log: same pool address, same topic[0] (the event signature).
func findMatchingLog(receipt *types.Receipt, hintLog model.Log) (*types.Log, bool) {
	if len(hintLog.Topics) == 0 {
		return nil, false
	}
	for _, l := range receipt.Logs {
		if l.Address != hintLog.Address {
			continue
		}
		if len(l.Topics) == 0 || l.Topics[0] != hintLog.Topics[0] {
			continue
		}
		return l, true
	}
	return nil, false
}

func findSyncLog(receipt *types.Receipt, pool common.Address) (*types.Log, bool) {
	for _, l := range receipt.Logs {
		if l.Address == pool && len(l.Topics) > 0 && l.Topics[0] == model.V2SyncTopic {
			return l, true
		}
	}
	return nil, false
}

func classifyVariant(topic common.Hash) model.PoolVariant {
	switch topic {
	case model.V3SwapTopic:
		return model.PoolVariantV3
	case model.V2SwapTopic:
		return model.PoolVariantV2
	default:
		return model.PoolVariantUnknown
	}
}

// clampNonNegative returns x if x >= 0, else 0 — the V3 log's amount0/1
// fields use the sign to indicate direction (negative = received); only
// the "sent" (positive) side is meaningful as amountSent.
func clampNonNegative(x *big.Int) *big.Int {
	if x.Sign() < 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Set(x)
}

// decodeI256 interprets a 32-byte big-endian word as a two's-complement
// signed 256-bit integer, the representation Solidity's int256 logs use.
func decodeI256(word []byte) *big.Int {
	v := new(big.Int).SetBytes(word)
	if len(word) == 32 && word[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return v
}

// Derive turns one landed (userTx, hint) pair into its list of UserSwaps:
// filter hint logs to known swap topics, classify each by variant, match
// it to its receipt log, decode its amounts/price, and attach candidate
// backrun pools.
func Derive(ctx context.Context, c Caller, receipts ReceiptFetcher, hint model.Hint, blockNumber uint64) ([]model.UserSwap, error) {
	receipt, err := receipts.TransactionReceipt(ctx, hint.TxHash)
	if err != nil {
		return nil, fmt.Errorf("tradeparams: fetching receipt for %s: %w", hint.TxHash, err)
	}
	if receipt == nil {
		return nil, model.ErrTxNotLanded(hint.TxHash)
	}

	var swaps []model.UserSwap
	for _, hintLog := range hint.Logs {
		if len(hintLog.Topics) == 0 {
			continue
		}
		variant := classifyVariant(hintLog.Topics[0])
		if variant == model.PoolVariantUnknown {
			continue
		}

		receiptLog, ok := findMatchingLog(receipt, hintLog)
		if !ok {
			// Branch-fatal for this swap only; the tx's other swaps (and
			// the rest of the pipeline) continue.
			continue
		}

		swap, err := deriveOne(ctx, c, receipt, receiptLog, variant, blockNumber)
		if err != nil {
			continue
		}
		if swap == nil {
			continue
		}
		swaps = append(swaps, *swap)
	}

	return swaps, nil
}

func deriveOne(ctx context.Context, c Caller, receipt *types.Receipt, l *types.Log, variant model.PoolVariant, blockNumber uint64) (*model.UserSwap, error) {
	pool := l.Address

	token0, err := callAddress(ctx, c, pool, token0Selector, blockNumber)
	if err != nil {
		return nil, model.ErrCallError(err, "token0() on %s", pool)
	}
	token1, err := callAddress(ctx, c, pool, token1Selector, blockNumber)
	if err != nil {
		return nil, model.ErrCallError(err, "token1() on %s", pool)
	}
	decimals, err := callDecimals(ctx, c, token0, blockNumber)
	if err != nil {
		return nil, model.ErrCallError(err, "decimals() on %s", token0)
	}
	token0IsWeth := token0 == model.WETH
	if !token0IsWeth && token1 != model.WETH {
		// WETH is neither token of this pool; skip this swap.
		return nil, nil
	}

	var amount0, amount1, price *big.Int

	switch variant {
	case model.PoolVariantV3:
		if len(l.Data) < 128 {
			return nil, model.ErrEvmParseError(nil, "short V3 swap log data (%d bytes)", len(l.Data))
		}
		amount0 = decodeI256(l.Data[0:32])
		amount1 = decodeI256(l.Data[32:64])
		sqrtPriceX96 := new(uint256.Int).SetBytes(l.Data[64:96])
		liquidity := new(uint256.Int).SetBytes(l.Data[96:128])
		price = priceV3(sqrtPriceX96, liquidity, decimals)

	case model.PoolVariantV2:
		if len(l.Data) < 128 {
			return nil, model.ErrEvmParseError(nil, "short V2 swap log data (%d bytes)", len(l.Data))
		}
		amount0Out := decodeI256(l.Data[64:96])
		amount1Out := decodeI256(l.Data[96:128])
		// amount0/amount1 take the V2 Swap log's amountOut fields directly;
		// exactly one of the two is always zero, and clampNonNegative below
		// reads the nonzero one as the "sent" side.
		amount0 = amount0Out
		amount1 = amount1Out
		if syncLog, ok := findSyncLog(receipt, pool); ok && len(syncLog.Data) >= 64 {
			reserve0 := new(big.Int).SetBytes(syncLog.Data[0:32])
			reserve1 := new(big.Int).SetBytes(syncLog.Data[32:64])
			price = priceV2(reserve0, reserve1, decimals)
		} else {
			price = big.NewInt(0)
		}

	default:
		return nil, fmt.Errorf("tradeparams: unsupported variant %s", variant)
	}

	amount0Sent := clampNonNegative(amount0)
	amount1Sent := clampNonNegative(amount1)
	swap0For1 := amount0Sent.Sign() > 0

	var tokenIn, tokenOut common.Address
	if swap0For1 {
		tokenIn, tokenOut = token0, token1
	} else {
		tokenIn, tokenOut = token1, token0
	}

	candidates, err := pools.Discover(ctx, c, variant, tokenIn, tokenOut, blockNumber)
	if err != nil {
		return nil, model.ErrCallError(err, "discovering candidate pools for (%s, %s)", tokenIn, tokenOut)
	}
	candidates = pools.ExcludeAndDedup(candidates, pool)
	if len(candidates) == 0 {
		// Cannot be arbitraged with a two-leg path; skip this swap.
		return nil, nil
	}

	weth := model.WETH
	other := token0
	if token0IsWeth {
		other = token1
	}

	return &model.UserSwap{
		PoolVariant:       variant,
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Amount0Sent:       amount0Sent,
		Amount1Sent:       amount1Sent,
		Token0IsWeth:      token0IsWeth,
		Pool:              pool,
		PostTradePrice:    price,
		Tokens:            model.TokenPair{Weth: weth, Token: other},
		CandidateArbPools: candidates,
	}, nil
}
