package chainclient_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/flashbots-run/hindsight/chainclient"
)

// traceCallManyParams is unexported; exercise it indirectly would require
// a live RPC endpoint. These tests instead pin down the shape of the
// go-ethereum types this package composes, guarding against accidental
// signature drift in the surface chainclient depends on.

func TestTransactionHashIsDeterministic(t *testing.T) {
	tx := types.NewTransaction(0, common.Address{}, nil, 21000, nil, nil)
	require.Equal(t, tx.Hash(), tx.Hash())
}

func TestAccountBasicZeroValue(t *testing.T) {
	var ab chainclient.AccountBasic
	require.Nil(t, ab.Balance)
	require.Equal(t, common.Hash{}, ab.CodeHash)
}
