package tradeparams

import (
	"math/big"

	"github.com/holiman/uint256"
)

// q96 is 2^96, the Q64.96 fixed-point scale Uniswap V3 prices sqrtPriceX96
// against.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// priceV3 computes token1-per-token0 scaled by 10^decimals from a V3 pool's
// sqrtPriceX96 and liquidity:
// postPrice = liquidity^2 / sqrtPriceX96^2 * 10^decimals.
//
// sqrtPriceX96 is up to 160 bits; squaring it can exceed uint256's 256-bit
// range, so the multiplication/division is carried out on big.Int (which
// has no width limit) rather than uint256.Int, even though the inputs
// arrive as uint256 values decoded directly from log data.
func priceV3(sqrtPriceX96, liquidity *uint256.Int, decimals uint8) *big.Int {
	if sqrtPriceX96.IsZero() {
		return big.NewInt(0)
	}
	l := liquidity.ToBig()
	sp := sqrtPriceX96.ToBig()

	num := new(big.Int).Mul(l, l)
	num.Mul(num, pow10(decimals))
	denom := new(big.Int).Mul(sp, sp)

	return new(big.Int).Div(num, denom)
}

// priceV2 computes token1-per-token0 scaled by 10^decimals from a V2
// pool's reserves:
// postPrice = reserve1 * 10^decimals / reserve0.
func priceV2(reserve0, reserve1 *big.Int, decimals uint8) *big.Int {
	if reserve0.Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(reserve1, pow10(decimals))
	return new(big.Int).Div(num, reserve0)
}

// PriceV2 exposes priceV2 for callers outside this package (the direction
// step of the arb search re-evaluates a pool's price against live fork
// state rather than a decoded log).
func PriceV2(reserve0, reserve1 *big.Int, decimals uint8) *big.Int {
	return priceV2(reserve0, reserve1, decimals)
}

// PriceV3 exposes priceV3 for callers outside this package; see PriceV2.
func PriceV3(sqrtPriceX96, liquidity *uint256.Int, decimals uint8) *big.Int {
	return priceV3(sqrtPriceX96, liquidity, decimals)
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
