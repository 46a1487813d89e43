package search

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/flashbots-run/hindsight/chainclient"
	"github.com/flashbots-run/hindsight/forkdb"
	"github.com/flashbots-run/hindsight/model"
)

// fixedWordPoolCode assembles a trivial contract that ignores its calldata
// and always returns word as a single 32-byte word: PUSH32 word; PUSH1 0;
// MSTORE; PUSH1 32; PUSH1 0; RETURN. It stands in for token0()/slot0()/
// liquidity() uniformly, since CalculateSwapV3 never calls swap() on the
// pool and so never needs selector dispatch.
func fixedWordPoolCode(word *big.Int) []byte {
	w := common.BigToHash(word)
	code := make([]byte, 0, 38)
	code = append(code, 0x7f) // PUSH32
	code = append(code, w.Bytes()...)
	code = append(code,
		0x60, 0x00, // PUSH1 0x00
		0x52,       // MSTORE
		0x60, 0x20, // PUSH1 0x20
		0x60, 0x00, // PUSH1 0x00
		0xf3, // RETURN
	)
	return code
}

// wethBalanceOfCode implements balanceOf(address) against WETH9's mapping
// layout (storage slot keccak256(abi.encode(addr, 3))), the same slot
// convention braindance.Seed and adjustWethStorageBalance write to
// directly: CALLDATALOAD the address argument, hash it together with the
// slot index, SLOAD, and return the result.
var wethBalanceOfCode = []byte{
	0x60, 0x04, // PUSH1 0x04
	0x35,       // CALLDATALOAD -> addr word
	0x60, 0x00, // PUSH1 0x00
	0x52,       // MSTORE        mem[0:32] = addr word
	0x60, 0x03, // PUSH1 0x03
	0x60, 0x20, // PUSH1 0x20
	0x52,       // MSTORE        mem[32:64] = 3
	0x60, 0x40, // PUSH1 0x40
	0x60, 0x00, // PUSH1 0x00
	0x20,       // SHA3          keccak256(mem[0:64])
	0x54,       // SLOAD
	0x60, 0x00, // PUSH1 0x00
	0x52,       // MSTORE        mem[0:32] = balance
	0x60, 0x20, // PUSH1 0x20
	0x60, 0x00, // PUSH1 0x00
	0xf3, // RETURN
}

// fixedCodeChainReader serves fixed bytecode for a small set of addresses
// and zero/empty defaults for everything else, following the
// forkevm_test.go fakeChainReader pattern.
type fixedCodeChainReader struct {
	code map[common.Address][]byte
}

func (r fixedCodeChainReader) AccountBasic(ctx context.Context, addr common.Address, blockNumber uint64) (chainclient.AccountBasic, error) {
	return chainclient.AccountBasic{Balance: big.NewInt(0), Nonce: 0, CodeHash: types.EmptyCodeHash}, nil
}

func (r fixedCodeChainReader) Storage(ctx context.Context, addr common.Address, slot common.Hash, blockNumber uint64) (common.Hash, error) {
	return common.Hash{}, nil
}

func (r fixedCodeChainReader) Code(ctx context.Context, addr common.Address, blockNumber uint64) ([]byte, error) {
	return r.code[addr], nil
}

var (
	bracketTestStartPool  = common.HexToAddress("0x1111111111111111111111111111111111aaaa")
	bracketTestEndPool    = common.HexToAddress("0x2222222222222222222222222222222222bbbb")
	bracketTestOtherToken = common.HexToAddress("0x0000000000000000000000000000000000c0de")
)

func newBracketTestBase(t *testing.T) *forkdb.Base {
	t.Helper()

	q96 := new(big.Int).Lsh(big.NewInt(1), 96)
	startWord := q96
	endWord := new(big.Int).Mul(q96, big.NewInt(3))

	reader := fixedCodeChainReader{code: map[common.Address][]byte{
		bracketTestStartPool: fixedWordPoolCode(startWord),
		bracketTestEndPool:   fixedWordPoolCode(endWord),
		model.WETH:           wethBalanceOfCode,
	}}
	return forkdb.NewBase(reader, 17637018)
}

func bracketTestBlockContext() model.BlockContext {
	return model.BlockContext{
		Number:        17637019,
		Timestamp:     1_600_000_000,
		BaseFeePerGas: big.NewInt(10_000_000_000),
		GasLimit:      30_000_000,
	}
}

func bracketTestUserTx() UserTx {
	to := common.HexToAddress("0x00000000000000000000000000000000000abc")
	return UserTx{
		From:     common.HexToAddress("0xf000000000000000000000000000000000000f"),
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      100_000,
		GasPrice: big.NewInt(0),
	}
}

func bracketTestPath() path {
	return path{
		startPool:    bracketTestStartPool,
		startVariant: model.PoolVariantV3,
		endPool:      bracketTestEndPool,
		endVariant:   model.PoolVariantV3,
		tokenWeth:    model.WETH,
		tokenOther:   bracketTestOtherToken,
	}
}

// TestBracketSearchFBestNonDecreasingAcrossDepth exercises the universal
// invariant that fBest never regresses as the search is allowed to run
// more rounds: bracketSearch only ever overwrites fBest with a strictly
// greater sample balance, so a deeper search over the same starting band
// can only match or beat a shallower one, never fall behind it.
func TestBracketSearchFBestNonDecreasingAcrossDepth(t *testing.T) {
	base := newBracketTestBase(t)
	blockCtx := bracketTestBlockContext()
	userTx := bracketTestUserTx()
	p := bracketTestPath()
	b0 := model.StartingBalance()

	shallow := Config{Intervals: 5, MaxDepth: 0}
	_, fBestShallow, err := bracketSearch(context.Background(), shallow, base, blockCtx, userTx, p, b0)
	require.NoError(t, err)

	deep := Config{Intervals: 5, MaxDepth: 4}
	_, fBestDeep, err := bracketSearch(context.Background(), deep, base, blockCtx, userTx, p, b0)
	require.NoError(t, err)

	require.True(t, fBestDeep.Cmp(fBestShallow) >= 0,
		"a deeper search must never land on a worse best balance than a shallower one: shallow=%s deep=%s", fBestShallow, fBestDeep)
	require.True(t, fBestDeep.Cmp(b0) <= 0,
		"best balance can't exceed the starting balance when the end pool prices the token below the start pool: fBest=%s b0=%s", fBestDeep, b0)
}

// TestBracketSearchTerminatesAfterExactlyOneRoundAtMaxDepthZero exercises
// the termination bound: with MaxDepth=0, the depth>cfg.MaxDepth stop
// condition fires after exactly one round, so the result must equal the
// best (or the (0, b0) fallback) of that single round's Intervals
// samples, computed here independently via the same evaluate used
// internally.
func TestBracketSearchTerminatesAfterExactlyOneRoundAtMaxDepthZero(t *testing.T) {
	base := newBracketTestBase(t)
	blockCtx := bracketTestBlockContext()
	userTx := bracketTestUserTx()
	p := bracketTestPath()
	b0 := model.StartingBalance()

	cfg := Config{Intervals: 5, MaxDepth: 0}
	xBest, fBest, err := bracketSearch(context.Background(), cfg, base, blockCtx, userTx, p, b0)
	require.NoError(t, err)

	bandWidth := new(big.Int).Div(b0, big.NewInt(int64(cfg.Intervals)))
	wantXBest := big.NewInt(0)
	wantFBest := new(big.Int).Set(b0)
	for i := 0; i < cfg.Intervals; i++ {
		amountIn := new(big.Int).Mul(bandWidth, big.NewInt(int64(i)))
		balance, err := evaluate(base, blockCtx, userTx, p, amountIn)
		if err != nil {
			continue
		}
		if balance.Cmp(wantFBest) > 0 {
			wantXBest = amountIn
			wantFBest = balance
		}
	}

	require.Equal(t, 0, wantFBest.Cmp(fBest), "fBest must match the single round's best sample exactly: want=%s got=%s", wantFBest, fBest)
	require.Equal(t, 0, wantXBest.Cmp(xBest), "xBest must match the single round's best sample exactly: want=%s got=%s", wantXBest, xBest)
}
