package braindance

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/flashbots-run/hindsight/forkevm"
	"github.com/flashbots-run/hindsight/model"
)

var (
	token0Selector      = crypto.Keccak256([]byte("token0()"))[:4]
	token1Selector      = crypto.Keccak256([]byte("token1()"))[:4]
	getReservesSelector = crypto.Keccak256([]byte("getReserves()"))[:4]
	swapSelector        = crypto.Keccak256([]byte("swap(uint256,uint256,address,bytes)"))[:4]
	transferSelector    = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
	balanceOfSelector   = crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	slot0Selector       = crypto.Keccak256([]byte("slot0()"))[:4]
	liquiditySelector   = crypto.Keccak256([]byte("liquidity()"))[:4]
)

func encodeAddress(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

func encodeUint256(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func decodeUint256(ret []byte, word int) *big.Int {
	start := word * 32
	if len(ret) < start+32 {
		return big.NewInt(0)
	}
	return new(big.Int).SetBytes(ret[start : start+32])
}

func decodeAddress(ret []byte, word int) common.Address {
	start := word * 32
	if len(ret) < start+32 {
		return common.Address{}
	}
	return common.BytesToAddress(ret[start+12 : start+32])
}

func pairTokens(evm *forkevm.EVM, pool common.Address) (token0, token1 common.Address, err error) {
	ret0, err := evm.Call(model.BraindanceControllerAddress, pool, token0Selector, 100_000, nil)
	if err != nil {
		return common.Address{}, common.Address{}, model.ErrCallError(err, "token0() on %s", pool)
	}
	ret1, err := evm.Call(model.BraindanceControllerAddress, pool, token1Selector, 100_000, nil)
	if err != nil {
		return common.Address{}, common.Address{}, model.ErrCallError(err, "token1() on %s", pool)
	}
	return decodeAddress(ret0, 0), decodeAddress(ret1, 0), nil
}

func getReserves(evm *forkevm.EVM, pool common.Address) (reserve0, reserve1 *big.Int, err error) {
	ret, err := evm.Call(model.BraindanceControllerAddress, pool, getReservesSelector, 100_000, nil)
	if err != nil {
		return nil, nil, model.ErrCallError(err, "getReserves() on %s", pool)
	}
	return decodeUint256(ret, 0), decodeUint256(ret, 1), nil
}

func slot0SqrtPriceX96(evm *forkevm.EVM, pool common.Address) (*big.Int, error) {
	ret, err := evm.Call(model.BraindanceControllerAddress, pool, slot0Selector, 100_000, nil)
	if err != nil {
		return nil, model.ErrCallError(err, "slot0() on %s", pool)
	}
	return decodeUint256(ret, 0), nil
}

func liquidityOf(evm *forkevm.EVM, pool common.Address) (*big.Int, error) {
	ret, err := evm.Call(model.BraindanceControllerAddress, pool, liquiditySelector, 100_000, nil)
	if err != nil {
		return nil, model.ErrCallError(err, "liquidity() on %s", pool)
	}
	return decodeUint256(ret, 0), nil
}

// transferWeth moves amount of the helper's real WETH balance to to,
// driving WETH9's own forked bytecode rather than writing storage
// directly, so every WETH-denominated move is an actual EVM transfer.
func transferWeth(evm *forkevm.EVM, to common.Address, amount *big.Int) error {
	data := append(append([]byte{}, transferSelector...), encodeAddress(to)...)
	data = append(data, encodeUint256(amount)...)
	_, err := evm.Call(model.BraindanceAddress, model.WETH, data, 200_000, nil)
	if err != nil {
		return model.ErrSwapReverted("weth transfer: " + err.Error())
	}
	return nil
}

func wethBalanceOf(evm *forkevm.EVM, addr common.Address) (*big.Int, error) {
	data := append(append([]byte{}, balanceOfSelector...), encodeAddress(addr)...)
	ret, err := evm.Call(model.BraindanceControllerAddress, model.WETH, data, 100_000, nil)
	if err != nil {
		return nil, model.ErrCallError(err, "weth balanceOf(%s)", addr)
	}
	return decodeUint256(ret, 0), nil
}
