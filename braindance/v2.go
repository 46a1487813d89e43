package braindance

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashbots-run/hindsight/forkevm"
	"github.com/flashbots-run/hindsight/model"
)

// v2FeeNumerator/v2FeeDenominator apply Uniswap V2's fixed 0.3% swap fee.
const (
	v2FeeNumerator   = 997
	v2FeeDenominator = 1000
)

func amountOutV2(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(v2FeeNumerator))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(v2FeeDenominator))
	denominator.Add(denominator, amountInWithFee)
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(numerator, denominator)
}

func encodeSwapArgs(amount0Out, amount1Out *big.Int, to common.Address) []byte {
	var data []byte
	data = append(data, encodeUint256(amount0Out)...)
	data = append(data, encodeUint256(amount1Out)...)
	data = append(data, encodeAddress(to)...)
	data = append(data, encodeUint256(big.NewInt(128))...) // dynamic bytes offset
	data = append(data, encodeUint256(big.NewInt(0))...)   // bytes length = 0
	return data
}

// CalculateSwapV2 drives a real Uniswap V2 pool's forked bytecode through
// one swap leg: the helper transfers amountIn of tokenIn into the pool
// (a real WETH transfer when tokenIn is WETH; tokenOut legs transfer out
// of the pool the same way via its own forked bytecode), computes the
// expected output from the pool's on-chain reserves, and calls swap().
// Returns the amount received and the helper's resulting WETH balance.
func CalculateSwapV2(evm *forkevm.EVM, pool, tokenIn, tokenOut common.Address, amountIn *big.Int) (amountOut, endingWethBalance *big.Int, err error) {
	token0, token1, err := pairTokens(evm, pool)
	if err != nil {
		return nil, nil, err
	}

	reserve0, reserve1, err := getReserves(evm, pool)
	if err != nil {
		return nil, nil, err
	}

	zeroForOne := tokenIn == token0
	var reserveIn, reserveOut *big.Int
	if zeroForOne {
		reserveIn, reserveOut = reserve0, reserve1
	} else {
		reserveIn, reserveOut = reserve1, reserve0
	}
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, nil, model.ErrMathError("pool %s has a zero reserve", pool)
	}

	amountOut = amountOutV2(amountIn, reserveIn, reserveOut)
	if amountOut.Sign() <= 0 {
		return nil, nil, model.ErrSwapReverted("computed zero output")
	}

	if tokenIn == model.WETH {
		if err := transferWeth(evm, pool, amountIn); err != nil {
			return nil, nil, err
		}
	} else {
		if err := transferToken(evm, tokenIn, model.BraindanceAddress, pool, amountIn); err != nil {
			return nil, nil, err
		}
	}

	var amount0Out, amount1Out *big.Int
	if zeroForOne {
		amount0Out, amount1Out = big.NewInt(0), amountOut
	} else {
		amount0Out, amount1Out = amountOut, big.NewInt(0)
	}

	swapData := append(append([]byte{}, swapSelector...), encodeSwapArgs(amount0Out, amount1Out, model.BraindanceAddress)...)
	if _, err := evm.Call(model.BraindanceAddress, pool, swapData, 1_000_000, nil); err != nil {
		return nil, nil, model.ErrSwapReverted(err.Error())
	}

	endingWethBalance, err = wethBalanceOf(evm, model.BraindanceAddress)
	if err != nil {
		return nil, nil, err
	}
	return amountOut, endingWethBalance, nil
}

func transferToken(evm *forkevm.EVM, token, from, to common.Address, amount *big.Int) error {
	data := append(append([]byte{}, transferSelector...), encodeAddress(to)...)
	data = append(data, encodeUint256(amount)...)
	if _, err := evm.Call(from, token, data, 200_000, nil); err != nil {
		return model.ErrSwapReverted("token transfer: " + err.Error())
	}
	return nil
}
