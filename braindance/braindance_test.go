package braindance

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/flashbots-run/hindsight/forkdb"
	"github.com/flashbots-run/hindsight/model"
)

func TestAmountOutV2MatchesUniswapFormula(t *testing.T) {
	out := amountOutV2(big.NewInt(1000), big.NewInt(1_000_000), big.NewInt(1_000_000))
	require.True(t, out.Sign() > 0)
	require.True(t, out.Cmp(big.NewInt(1000)) < 0) // fee + slippage keep it under 1:1
}

func TestAmountOutV2ZeroOnEmptyReserves(t *testing.T) {
	out := amountOutV2(big.NewInt(1000), big.NewInt(0), big.NewInt(0))
	require.Equal(t, 0, out.Sign())
}

func TestVirtualReservesPreserveQ96Scale(t *testing.T) {
	liquidity := big.NewInt(1_000_000_000)
	r0, r1 := virtualReserves(q96, liquidity) // sqrtPrice == q96 means price == 1
	require.Equal(t, 0, r0.Cmp(r1))
}

func TestLedgerCreditDebitRoundtrip(t *testing.T) {
	l := NewLedger()
	token := common.HexToAddress("0x1111111111111111111111111111111111aaaa")

	l.Credit(token, big.NewInt(500))
	require.Equal(t, big.NewInt(500), l.Balance(token))

	l.Debit(token, big.NewInt(200))
	require.Equal(t, big.NewInt(300), l.Balance(token))
}

func TestSeedSetsStartingWethBalanceSlot(t *testing.T) {
	base := forkdb.NewBase(nil, 0)
	sandbox := base.NewSandbox()

	Seed(sandbox)

	slot := wethBalanceSlot(model.BraindanceAddress)
	val, err := sandbox.GetState(nil, model.WETH, slot)
	require.NoError(t, err)
	require.Equal(t, common.BigToHash(model.StartingBalance()), val)
}
