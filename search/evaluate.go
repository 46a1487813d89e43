package search

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashbots-run/hindsight/braindance"
	"github.com/flashbots-run/hindsight/forkdb"
	"github.com/flashbots-run/hindsight/forkevm"
	"github.com/flashbots-run/hindsight/model"
)

// UserTx carries exactly the fields needed to re-commit the user's
// landed transaction against a fresh fork: sender, recipient (nil for a
// contract creation), calldata, and gas/value terms — the message-call
// shape CommitTransaction needs, independent of the original signed
// transaction's encoding.
type UserTx struct {
	From     common.Address
	To       *common.Address
	Data     []byte
	Gas      uint64
	GasPrice *big.Int
	Value    *big.Int
}

// evaluate runs one full (userTx, path, amountIn) sample: a fresh fork,
// the braindance helper seeded and attached, the user's transaction
// committed, then the two braindance legs.
func evaluate(base *forkdb.Base, blockCtx model.BlockContext, userTx UserTx, p path, amountIn *big.Int) (*big.Int, error) {
	sandbox := base.NewSandbox()
	braindance.Seed(sandbox)
	evm := forkevm.New(context.Background(), sandbox, blockCtx)

	if _, err := evm.CommitTransaction(userTx.From, userTx.To, userTx.Data, userTx.Gas, userTx.GasPrice, userTx.Value); err != nil {
		return nil, err
	}

	ledger := braindance.NewLedger()

	amountOut, err := swapLeg(evm, ledger, p.startVariant, p.startPool, p.tokenWeth, p.tokenOther, amountIn)
	if err != nil {
		return nil, err
	}

	_, endingWeth, err := swapLegFull(evm, ledger, p.endVariant, p.endPool, p.tokenOther, p.tokenWeth, amountOut)
	if err != nil {
		return nil, err
	}

	return endingWeth, nil
}

func swapLeg(evm *forkevm.EVM, ledger *braindance.Ledger, variant model.PoolVariant, pool, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	amountOut, _, err := swapLegFull(evm, ledger, variant, pool, tokenIn, tokenOut, amountIn)
	return amountOut, err
}

func swapLegFull(evm *forkevm.EVM, ledger *braindance.Ledger, variant model.PoolVariant, pool, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, *big.Int, error) {
	switch variant {
	case model.PoolVariantV2:
		return braindance.CalculateSwapV2(evm, pool, tokenIn, tokenOut, amountIn)
	case model.PoolVariantV3:
		return braindance.CalculateSwapV3(evm, ledger, pool, tokenIn, tokenOut, amountIn)
	default:
		return nil, nil, model.ErrMathError("unknown pool variant for %s", pool)
	}
}
