package pools_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/flashbots-run/hindsight/model"
	"github.com/flashbots-run/hindsight/pools"
)

type fakeCaller struct {
	byFactory map[common.Address]common.Address
}

func (f fakeCaller) Call(ctx context.Context, msg ethereum.CallMsg, blockNumber uint64) ([]byte, error) {
	addr := f.byFactory[*msg.To]
	out := make([]byte, 32)
	copy(out[12:], addr.Bytes())
	return out, nil
}

func TestV2PairsDropsZeroAddress(t *testing.T) {
	sushiPool := common.HexToAddress("0x00000000000000000000000000000000001234")
	c := fakeCaller{byFactory: map[common.Address]common.Address{
		model.UniswapV2Factory: {},
		model.SushiV2Factory:   sushiPool,
	}}

	refs, err := pools.V2Pairs(context.Background(), c, model.WETH, common.Address{1}, 17637018)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, sushiPool, refs[0].Address)
	require.Equal(t, model.PoolVariantV2, refs[0].Variant)
}

func TestDiscoverDispatchesByOrigin(t *testing.T) {
	v3Pool := common.HexToAddress("0x0000000000000000000000000000000000abcd")
	c := fakeCaller{byFactory: map[common.Address]common.Address{
		model.UniswapV3Factory: v3Pool,
	}}

	refs, err := pools.Discover(context.Background(), c, model.PoolVariantV2, model.WETH, common.Address{1}, 17637018)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, model.PoolVariantV3, refs[0].Variant)
}

func TestExcludeAndDedup(t *testing.T) {
	userPool := common.HexToAddress("0x1111111111111111111111111111111111aaaa")
	other := common.HexToAddress("0x2222222222222222222222222222222222bbbb")

	in := []model.PoolRef{
		{Address: userPool, Variant: model.PoolVariantV2},
		{Address: other, Variant: model.PoolVariantV3},
		{Address: other, Variant: model.PoolVariantV3},
		{Address: common.Address{}, Variant: model.PoolVariantV2},
	}

	out := pools.ExcludeAndDedup(in, userPool)
	require.Len(t, out, 1)
	require.Equal(t, other, out[0].Address)
}
