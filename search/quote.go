// Package search implements the arb search engine: path direction
// selection, the braindance evaluation function, and the bracketed
// recursive search for the optimal backrun input amount.
package search

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/flashbots-run/hindsight/forkevm"
	"github.com/flashbots-run/hindsight/model"
	"github.com/flashbots-run/hindsight/tradeparams"
)

var (
	token0Selector    = crypto.Keccak256([]byte("token0()"))[:4]
	decimalsSelector  = crypto.Keccak256([]byte("decimals()"))[:4]
	getReservesSel    = crypto.Keccak256([]byte("getReserves()"))[:4]
	slot0Selector     = crypto.Keccak256([]byte("slot0()"))[:4]
	liquiditySelector = crypto.Keccak256([]byte("liquidity()"))[:4]
)

func word(ret []byte, i int) []byte {
	start := i * 32
	if len(ret) < start+32 {
		return make([]byte, 32)
	}
	return ret[start : start+32]
}

// livePrice reads pool's current price directly off fork state via
// read-only calls, the same V2/V3 formula tradeparams uses against a
// decoded log, reapplied here for the direction-selection step.
func livePrice(evm *forkevm.EVM, pool common.Address, variant model.PoolVariant) (*big.Int, error) {
	token0 := common.BytesToAddress(word(mustCall(evm, pool, token0Selector), 0)[12:])
	decimals := uint8(new(big.Int).SetBytes(mustCall(evm, token0, decimalsSelector)).Uint64())

	switch variant {
	case model.PoolVariantV2:
		ret, err := evm.Call(model.BraindanceControllerAddress, pool, getReservesSel, 100_000, nil)
		if err != nil {
			return nil, model.ErrCallError(err, "getReserves() on %s", pool)
		}
		reserve0 := new(big.Int).SetBytes(word(ret, 0))
		reserve1 := new(big.Int).SetBytes(word(ret, 1))
		return tradeparams.PriceV2(reserve0, reserve1, decimals), nil

	case model.PoolVariantV3:
		slot0, err := evm.Call(model.BraindanceControllerAddress, pool, slot0Selector, 100_000, nil)
		if err != nil {
			return nil, model.ErrCallError(err, "slot0() on %s", pool)
		}
		liq, err := evm.Call(model.BraindanceControllerAddress, pool, liquiditySelector, 100_000, nil)
		if err != nil {
			return nil, model.ErrCallError(err, "liquidity() on %s", pool)
		}
		sqrtPriceX96 := new(uint256.Int).SetBytes(word(slot0, 0))
		liquidity := new(uint256.Int).SetBytes(word(liq, 0))
		return tradeparams.PriceV3(sqrtPriceX96, liquidity, decimals), nil

	default:
		return nil, model.ErrMathError("unknown pool variant for %s", pool)
	}
}

// mustCall is used only for the two small, always-present ERC20 reads
// (token0/decimals): a failure there means the pool/token pairing itself
// is malformed, which is branch-fatal regardless, so the zero value lets
// the caller's subsequent real call surface the same error cleanly.
func mustCall(evm *forkevm.EVM, to common.Address, data []byte) []byte {
	ret, err := evm.Call(model.BraindanceControllerAddress, to, data, 100_000, nil)
	if err != nil {
		return make([]byte, 32)
	}
	return ret
}
