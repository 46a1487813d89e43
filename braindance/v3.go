package braindance

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashbots-run/hindsight/forkevm"
	"github.com/flashbots-run/hindsight/model"
)

// adjustWethStorageBalance applies delta directly to addr's WETH9 storage
// balance, a real storage write without driving WETH9's bytecode — used
// for the V3 leg's WETH side, where the counterparty (pool) balance isn't
// being simulated at the bytecode level (see virtualReserves).
func adjustWethStorageBalance(evm *forkevm.EVM, addr common.Address, delta *big.Int) error {
	sandbox := evm.Sandbox()
	slot := wethBalanceSlot(addr)

	current, err := sandbox.GetState(context.Background(), model.WETH, slot)
	if err != nil {
		return model.ErrCallError(err, "reading weth balance slot for %s", addr)
	}

	bal := new(big.Int).Add(new(big.Int).SetBytes(current.Bytes()), delta)
	if bal.Sign() < 0 {
		return model.ErrMathError("weth balance underflow for %s", addr)
	}
	sandbox.SetState(model.WETH, slot, common.BigToHash(bal))
	return nil
}

// q96 is 2^96, the Q64.96 fixed-point scale sqrtPriceX96 is denominated in.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// virtualReserves converts a V3 pool's current liquidity and sqrtPriceX96
// into the (reserve0, reserve1) a constant-product pool would need to
// produce the same instantaneous price, so the V2 fee/output formula can
// stand in for a full tick-crossing swap. Valid only as a same-tick
// approximation: amounts large enough to cross a tick boundary are priced
// less accurately, the swap-primitive-level cost of not executing the
// pool's real bytecode for this leg (see DESIGN.md).
func virtualReserves(sqrtPriceX96, liquidity *big.Int) (reserve0, reserve1 *big.Int) {
	reserve0 = new(big.Int).Mul(liquidity, q96)
	reserve0.Div(reserve0, sqrtPriceX96)

	reserve1 = new(big.Int).Mul(liquidity, sqrtPriceX96)
	reserve1.Div(reserve1, q96)

	return reserve0, reserve1
}

// CalculateSwapV3 approximates one swap leg against a Uniswap V3 pool
// using its current liquidity/sqrtPriceX96 read through real forked
// bytecode, but a Go-side constant-liquidity formula for the swap itself.
// The WETH side of the leg is always a direct write to the helper's real
// WETH9 balance slot (adjustWethStorageBalance), not a transfer call; the
// non-WETH side is tracked only in ledger. Returns the amount received and
// the helper's resulting real WETH balance.
func CalculateSwapV3(evm *forkevm.EVM, ledger *Ledger, pool, tokenIn, tokenOut common.Address, amountIn *big.Int) (amountOut, endingWethBalance *big.Int, err error) {
	token0, _, err := pairTokens(evm, pool)
	if err != nil {
		return nil, nil, err
	}
	sqrtPriceX96, err := slot0SqrtPriceX96(evm, pool)
	if err != nil {
		return nil, nil, err
	}
	liquidity, err := liquidityOf(evm, pool)
	if err != nil {
		return nil, nil, err
	}
	if sqrtPriceX96.Sign() == 0 || liquidity.Sign() == 0 {
		return nil, nil, model.ErrMathError("pool %s has no active liquidity", pool)
	}

	reserve0, reserve1 := virtualReserves(sqrtPriceX96, liquidity)

	zeroForOne := tokenIn == token0
	var reserveIn, reserveOut *big.Int
	if zeroForOne {
		reserveIn, reserveOut = reserve0, reserve1
	} else {
		reserveIn, reserveOut = reserve1, reserve0
	}

	amountOut = amountOutV2(amountIn, reserveIn, reserveOut)
	if amountOut.Sign() <= 0 {
		return nil, nil, model.ErrSwapReverted("computed zero output")
	}

	if tokenIn == model.WETH {
		if err := adjustWethStorageBalance(evm, model.BraindanceAddress, new(big.Int).Neg(amountIn)); err != nil {
			return nil, nil, err
		}
		ledger.Credit(tokenOut, amountOut)
	} else {
		if ledger.Balance(tokenIn).Cmp(amountIn) < 0 {
			return nil, nil, model.ErrMathError("ledger balance of %s insufficient for leg", tokenIn)
		}
		ledger.Debit(tokenIn, amountIn)
		if err := adjustWethStorageBalance(evm, model.BraindanceAddress, amountOut); err != nil {
			return nil, nil, err
		}
	}

	endingWethBalance, err = wethBalanceOf(evm, model.BraindanceAddress)
	if err != nil {
		return nil, nil, err
	}
	return amountOut, endingWethBalance, nil
}
