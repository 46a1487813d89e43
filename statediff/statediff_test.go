package statediff_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/flashbots-run/hindsight/chainclient"
	"github.com/flashbots-run/hindsight/model"
	"github.com/flashbots-run/hindsight/statediff"
)

func TestBuildKeepsEarliestDiffPerSlot(t *testing.T) {
	addr := common.HexToAddress("0xaaaa000000000000000000000000000000aaaa")
	slot := common.HexToHash("0x01")

	traces := []chainclient.BlockTrace{
		{
			TxHash: common.HexToHash("0x1"),
			StateDiff: map[common.Address]chainclient.AccountDiff{
				addr: {StorageTouched: []common.Hash{slot}},
			},
		},
		{
			// A later tx touching the same slot must not add a duplicate
			// entry; the state-diff builder only records the earliest
			// (pre-tx) occurrence.
			TxHash: common.HexToHash("0x2"),
			StateDiff: map[common.Address]chainclient.AccountDiff{
				addr: {StorageTouched: []common.Hash{slot}},
			},
		},
	}

	diff := statediff.Build(traces)
	require.Len(t, diff.Touched, 1)
	require.Equal(t, model.StorageKey{Address: addr, Slot: slot}, diff.Touched[0])
}

func TestBuildIsIdempotent(t *testing.T) {
	addr1 := common.HexToAddress("0x1111000000000000000000000000000000aaaa")
	addr2 := common.HexToAddress("0x2222000000000000000000000000000000bbbb")
	slotA := common.HexToHash("0xa")
	slotB := common.HexToHash("0xb")

	traces := []chainclient.BlockTrace{
		{
			TxHash: common.HexToHash("0x1"),
			StateDiff: map[common.Address]chainclient.AccountDiff{
				addr1: {StorageTouched: []common.Hash{slotA, slotB}},
				addr2: {StorageTouched: []common.Hash{slotA}},
			},
		},
	}

	first := statediff.Build(traces)
	second := statediff.Build(traces)
	require.ElementsMatch(t, first.Touched, second.Touched)
}

func TestAddressesDedups(t *testing.T) {
	addr := common.HexToAddress("0x3333000000000000000000000000000000cccc")
	diff := model.StateDiff{Touched: []model.StorageKey{
		{Address: addr, Slot: common.HexToHash("0x1")},
		{Address: addr, Slot: common.HexToHash("0x2")},
	}}

	require.Equal(t, []common.Address{addr}, statediff.Addresses(diff))
}
