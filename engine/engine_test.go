package engine_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/flashbots-run/hindsight/chainclient"
	"github.com/flashbots-run/hindsight/engine"
	"github.com/flashbots-run/hindsight/model"
	"github.com/flashbots-run/hindsight/search"
)

type fakeChain struct {
	tx      *types.Transaction
	receipt *types.Receipt
	block   *types.Block
}

func (f fakeChain) Transaction(ctx context.Context, hash common.Hash) (*types.Transaction, error) {
	return f.tx, nil
}

func (f fakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return f.receipt, nil
}

func (f fakeChain) BlockWithTxs(ctx context.Context, number uint64) (*types.Block, error) {
	return f.block, nil
}

func (f fakeChain) Call(ctx context.Context, msg ethereum.CallMsg, blockNumber uint64) ([]byte, error) {
	return make([]byte, 32), nil
}

func (f fakeChain) AccountBasic(ctx context.Context, addr common.Address, blockNumber uint64) (chainclient.AccountBasic, error) {
	return chainclient.AccountBasic{Balance: big.NewInt(0), Nonce: 0, CodeHash: types.EmptyCodeHash}, nil
}

func (f fakeChain) Storage(ctx context.Context, addr common.Address, slot common.Hash, blockNumber uint64) (common.Hash, error) {
	return common.Hash{}, nil
}

func (f fakeChain) Code(ctx context.Context, addr common.Address, blockNumber uint64) ([]byte, error) {
	return nil, nil
}

func TestProcessReturnsTxNotLandedWhenTransactionMissing(t *testing.T) {
	e := engine.New(fakeChain{tx: nil}, search.DefaultConfig())
	_, err := e.Process(context.Background(), model.Hint{TxHash: common.HexToHash("0x01"), BlockNumber: 100})
	require.Error(t, err)
}

func TestProcessReturnsNoResultsWithNoSwapLogs(t *testing.T) {
	tx := types.NewTransaction(0, common.HexToAddress("0x1111111111111111111111111111111111aaaa"), big.NewInt(0), 21000, big.NewInt(1), nil)
	e := engine.New(fakeChain{
		tx:      tx,
		receipt: &types.Receipt{Logs: nil},
	}, search.DefaultConfig())

	results, err := e.Process(context.Background(), model.Hint{TxHash: tx.Hash(), BlockNumber: 100})
	require.NoError(t, err)
	require.Empty(t, results)
}
