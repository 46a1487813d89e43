package search

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/flashbots-run/hindsight/model"
)

func TestSelectDirectionMatchesTable(t *testing.T) {
	userPool := common.HexToAddress("0x1111111111111111111111111111111111aaaa")
	altPoolAddr := common.HexToAddress("0x2222222222222222222222222222222222bbbb")
	alt := model.PoolRef{Address: altPoolAddr, Variant: model.PoolVariantV3}

	cases := []struct {
		name          string
		token0IsWeth  bool
		pUser, pAlt   int64
		wantStartPool common.Address
	}{
		{"weth0 user cheaper buys user", true, 100, 50, userPool},
		{"weth0 user pricier buys alt", true, 50, 100, altPoolAddr},
		{"weth1 user cheaper buys alt", false, 100, 50, altPoolAddr},
		{"weth1 user pricier buys user", false, 50, 100, userPool},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			userSwap := model.UserSwap{
				Pool:           userPool,
				PoolVariant:    model.PoolVariantV2,
				Token0IsWeth:   c.token0IsWeth,
				PostTradePrice: big.NewInt(c.pUser),
				Tokens:         model.TokenPair{Weth: model.WETH, Token: common.Address{9}},
			}
			p := selectDirection(userSwap, alt, big.NewInt(c.pUser), big.NewInt(c.pAlt))
			require.Equal(t, c.wantStartPool, p.startPool)
		})
	}
}

func TestDefaultConfigMatchesReferenceTuning(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 15, cfg.Intervals)
	require.Equal(t, 7, cfg.MaxDepth)
}
