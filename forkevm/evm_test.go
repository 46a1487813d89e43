package forkevm_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/flashbots-run/hindsight/chainclient"
	"github.com/flashbots-run/hindsight/forkdb"
	"github.com/flashbots-run/hindsight/forkevm"
	"github.com/flashbots-run/hindsight/model"
)

type fakeChainReader struct{}

func (fakeChainReader) AccountBasic(ctx context.Context, addr common.Address, blockNumber uint64) (chainclient.AccountBasic, error) {
	return chainclient.AccountBasic{Balance: big.NewInt(0), Nonce: 0, CodeHash: types.EmptyCodeHash}, nil
}

func (fakeChainReader) Storage(ctx context.Context, addr common.Address, slot common.Hash, blockNumber uint64) (common.Hash, error) {
	return common.Hash{}, nil
}

func (fakeChainReader) Code(ctx context.Context, addr common.Address, blockNumber uint64) ([]byte, error) {
	return nil, nil
}

func newTestEVM(t *testing.T) *forkevm.EVM {
	t.Helper()
	base := forkdb.NewBase(fakeChainReader{}, 17637018)
	sandbox := base.NewSandbox()
	return forkevm.New(context.Background(), sandbox, model.BlockContext{
		Number:        17637019,
		Timestamp:     1_600_000_000,
		BaseFeePerGas: big.NewInt(10_000_000_000),
		GasLimit:      30_000_000,
	})
}

func TestCallTransfersValueAgainstEmptyAccount(t *testing.T) {
	evm := newTestEVM(t)
	from := common.HexToAddress("0xf000000000000000000000000000000000000f")
	to := common.HexToAddress("0x00000000000000000000000000000000000abc")

	evm.Sandbox().SetBalance(from, big.NewInt(1_000_000))

	_, err := evm.Call(from, to, nil, 100_000, big.NewInt(1000))
	require.NoError(t, err)

	toBalance, err := evm.Sandbox().GetBalance(context.Background(), to)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), toBalance)
}

func TestCommitTransactionBumpsSenderNonce(t *testing.T) {
	evm := newTestEVM(t)
	from := common.HexToAddress("0xf000000000000000000000000000000000000f")
	to := common.HexToAddress("0x00000000000000000000000000000000000abc")
	evm.Sandbox().SetBalance(from, big.NewInt(1_000_000))

	_, err := evm.CommitTransaction(from, &to, nil, 100_000, big.NewInt(1), big.NewInt(0))
	require.NoError(t, err)

	nonce, err := evm.Sandbox().GetNonce(context.Background(), from)
	require.NoError(t, err)
	require.EqualValues(t, 1, nonce)
}
