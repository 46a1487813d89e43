// Package pools resolves a token pair into the set of candidate AMM pools
// that can serve as the other leg of a backrun: V3Pair makes one call to
// the canonical V3 factory at the 3000 fee tier, and V2Pairs one call each
// to the canonical V2 factories (Uniswap, Sushi). Discover queries only the
// factories of the variant other than the user's pool, so a V2 user pool
// gets no V2 candidates and a V3 user pool no V3 candidate.
package pools

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/flashbots-run/hindsight/model"
)

// Caller is the read-only eth_call surface pool discovery needs; narrowed
// from chainclient.Client so it can be faked in tests.
type Caller interface {
	Call(ctx context.Context, msg ethereum.CallMsg, blockNumber uint64) ([]byte, error)
}

var (
	getPairSelector = crypto.Keccak256([]byte("getPair(address,address)"))[:4]
	getPoolSelector = crypto.Keccak256([]byte("getPool(address,address,uint24)"))[:4]
)

func encodeAddress(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

func encodeUint24(fee uint32) []byte {
	return common.LeftPadBytes(big.NewInt(int64(fee)).Bytes(), 32)
}

func decodeAddress(ret []byte) common.Address {
	if len(ret) < 32 {
		return common.Address{}
	}
	return common.BytesToAddress(ret[len(ret)-20:])
}

func getPair(ctx context.Context, c Caller, factory, tokenA, tokenB common.Address, blockNumber uint64) (common.Address, error) {
	data := append(append([]byte{}, getPairSelector...), append(encodeAddress(tokenA), encodeAddress(tokenB)...)...)
	ret, err := c.Call(ctx, ethereum.CallMsg{To: &factory, Data: data}, blockNumber)
	if err != nil {
		return common.Address{}, fmt.Errorf("pools: getPair on %s: %w", factory, err)
	}
	return decodeAddress(ret), nil
}

func getPool(ctx context.Context, c Caller, factory, tokenA, tokenB common.Address, fee uint32, blockNumber uint64) (common.Address, error) {
	data := append([]byte{}, getPoolSelector...)
	data = append(data, encodeAddress(tokenA)...)
	data = append(data, encodeAddress(tokenB)...)
	data = append(data, encodeUint24(fee)...)
	ret, err := c.Call(ctx, ethereum.CallMsg{To: &factory, Data: data}, blockNumber)
	if err != nil {
		return common.Address{}, fmt.Errorf("pools: getPool on %s: %w", factory, err)
	}
	return decodeAddress(ret), nil
}

// V2Pairs resolves tokenA/tokenB on both canonical V2 factories, dropping
// any that return the zero address.
func V2Pairs(ctx context.Context, c Caller, tokenA, tokenB common.Address, blockNumber uint64) ([]model.PoolRef, error) {
	var out []model.PoolRef
	for _, factory := range []common.Address{model.UniswapV2Factory, model.SushiV2Factory} {
		addr, err := getPair(ctx, c, factory, tokenA, tokenB, blockNumber)
		if err != nil {
			return nil, err
		}
		if addr == (common.Address{}) {
			continue
		}
		out = append(out, model.PoolRef{Address: addr, Variant: model.PoolVariantV2})
	}
	return out, nil
}

// V3Pair resolves tokenA/tokenB on the canonical V3 factory at the 3000
// fee tier; returns nil if the pool does not exist.
func V3Pair(ctx context.Context, c Caller, tokenA, tokenB common.Address, blockNumber uint64) (*model.PoolRef, error) {
	addr, err := getPool(ctx, c, model.UniswapV3Factory, tokenA, tokenB, model.UniswapV3Fee, blockNumber)
	if err != nil {
		return nil, err
	}
	if addr == (common.Address{}) {
		return nil, nil
	}
	return &model.PoolRef{Address: addr, Variant: model.PoolVariantV3}, nil
}

// Discover resolves the candidate arb pools for (tokenA, tokenB), given
// the variant the user's own pool already has: a V2 origin only looks for
// a V3 alternate, while a V3 origin looks for both V2 alternates.
func Discover(ctx context.Context, c Caller, origin model.PoolVariant, tokenA, tokenB common.Address, blockNumber uint64) ([]model.PoolRef, error) {
	switch origin {
	case model.PoolVariantV2:
		v3, err := V3Pair(ctx, c, tokenA, tokenB, blockNumber)
		if err != nil {
			return nil, err
		}
		if v3 == nil {
			return nil, nil
		}
		return []model.PoolRef{*v3}, nil
	case model.PoolVariantV3:
		return V2Pairs(ctx, c, tokenA, tokenB, blockNumber)
	default:
		return nil, fmt.Errorf("pools: unknown origin variant %s", origin)
	}
}

// ExcludeAndDedup drops any pool matching exclude or the zero address, and
// removes duplicate addresses, preserving first-seen order.
func ExcludeAndDedup(candidates []model.PoolRef, exclude common.Address) []model.PoolRef {
	seen := make(map[common.Address]struct{})
	var out []model.PoolRef
	for _, p := range candidates {
		if p.Address == exclude || p.Address == (common.Address{}) {
			continue
		}
		if _, ok := seen[p.Address]; ok {
			continue
		}
		seen[p.Address] = struct{}{}
		out = append(out, p)
	}
	return out
}
