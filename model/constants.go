package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolVariant tags an AMM's pricing curve. It carries no data; all
// variant-specific behaviour is dispatched on the tag by the consuming
// package (pricing math, swap encoding, log layout).
type PoolVariant uint8

const (
	PoolVariantUnknown PoolVariant = iota
	PoolVariantV2
	PoolVariantV3
)

func (v PoolVariant) String() string {
	switch v {
	case PoolVariantV2:
		return "v2"
	case PoolVariantV3:
		return "v3"
	default:
		return "unknown"
	}
}

var (
	// WETH is the canonical wrapped-ether contract, the pricing numeraire.
	WETH = common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")

	// WethBalanceOfSlot is the mapping slot index of WETH's balanceOf map.
	// storage(WETH, keccak256(abi.encode(addr, WethBalanceOfSlot))) holds
	// addr's balance.
	WethBalanceOfSlot = big.NewInt(3)

	// Swap/Sync log topics, bit-exact per the external interface contract.
	V3SwapTopic = common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")
	V2SwapTopic = common.HexToHash("0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822")
	V2SyncTopic = common.HexToHash("0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1")

	// V2 factories.
	UniswapV2Factory = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	SushiV2Factory   = common.HexToAddress("0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac")

	// V3 factory and fee tier used for pool discovery.
	UniswapV3Factory = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
)

// UniswapV3Fee is the fee tier (hundredths of a bip) used for every V3
// factory lookup.
const UniswapV3Fee = 3000

// BraindanceAddress is the fixed address the swap-primitive helper is
// injected at before every simulation.
var BraindanceAddress = common.HexToAddress("0x000000000000000000000000000000000000b1")

// BraindanceControllerAddress and BraindanceDeveloperAddress are seeded
// with ETH/WETH so the helper never runs out of gas funds across an
// unbounded number of simulation calls.
var (
	BraindanceControllerAddress = common.HexToAddress("0x000000000000000000000000000000000000c0")
	BraindanceDeveloperAddress  = common.HexToAddress("0x000000000000000000000000000000000000d1")
)

// StartingBalance (B0) is the braindance helper's fixed starting WETH
// balance: 420 * 10^18 wei, 0x16c4abbebea0100000.
func StartingBalance() *big.Int {
	b, _ := new(big.Int).SetString("16c4abbebea0100000", 16)
	return b
}

// Search tuning defaults, per the bracketed recursive search.
const (
	DefaultSearchIntervals = 15
	DefaultSearchMaxDepth  = 7
)
