package forkdb_test

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/flashbots-run/hindsight/chainclient"
	"github.com/flashbots-run/hindsight/forkdb"
)

type fakeChainReader struct {
	accountCalls atomic.Int32
	storageCalls atomic.Int32
	codeCalls    atomic.Int32

	balance *big.Int
}

func (f *fakeChainReader) AccountBasic(ctx context.Context, addr common.Address, blockNumber uint64) (chainclient.AccountBasic, error) {
	f.accountCalls.Add(1)
	return chainclient.AccountBasic{Balance: f.balance, Nonce: 1, CodeHash: types.EmptyCodeHash}, nil
}

func (f *fakeChainReader) Storage(ctx context.Context, addr common.Address, slot common.Hash, blockNumber uint64) (common.Hash, error) {
	f.storageCalls.Add(1)
	return common.HexToHash("0x2a"), nil
}

func (f *fakeChainReader) Code(ctx context.Context, addr common.Address, blockNumber uint64) ([]byte, error) {
	f.codeCalls.Add(1)
	return []byte{0x60, 0x00}, nil
}

func TestBaseMemoizesSecondReadWithoutRPC(t *testing.T) {
	fc := &fakeChainReader{balance: big.NewInt(100)}
	base := forkdb.NewBase(fc, 17637018)
	addr := common.HexToAddress("0xaaaa000000000000000000000000000000aaaa")

	_, err := base.AccountInfo(context.Background(), addr)
	require.NoError(t, err)
	_, err = base.AccountInfo(context.Background(), addr)
	require.NoError(t, err)

	require.EqualValues(t, 1, fc.accountCalls.Load())
}

func TestSandboxOverlayShadowsBase(t *testing.T) {
	fc := &fakeChainReader{balance: big.NewInt(100)}
	base := forkdb.NewBase(fc, 17637018)
	addr := common.HexToAddress("0xbbbb000000000000000000000000000000bbbb")

	sandbox := base.NewSandbox()

	before, err := sandbox.GetBalance(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), before)

	sandbox.SetBalance(addr, big.NewInt(999))
	after, err := sandbox.GetBalance(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(999), after)
}

func TestSandboxStorageFallsThroughToBase(t *testing.T) {
	fc := &fakeChainReader{balance: big.NewInt(0)}
	base := forkdb.NewBase(fc, 17637018)
	sandbox := base.NewSandbox()
	addr := common.HexToAddress("0xcccc000000000000000000000000000000cccc")
	slot := common.HexToHash("0x01")

	val, err := sandbox.GetState(context.Background(), addr, slot)
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0x2a"), val)

	sandbox.SetState(addr, slot, common.HexToHash("0x99"))
	val2, err := sandbox.GetState(context.Background(), addr, slot)
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0x99"), val2)

	require.EqualValues(t, 1, fc.storageCalls.Load())
}

func TestSandboxBlockHashReturnsEmptyKeccakSentinel(t *testing.T) {
	fc := &fakeChainReader{}
	base := forkdb.NewBase(fc, 1)
	sandbox := base.NewSandbox()

	h1 := sandbox.BlockHash(1)
	h2 := sandbox.BlockHash(999999)
	require.Equal(t, h1, h2)
}
