// Package engine wires trade-parameter derivation, pool discovery, and
// the arb search engine into the single Engine.Process entry point the
// orchestrator drives.
package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/flashbots-run/hindsight/forkdb"
	"github.com/flashbots-run/hindsight/model"
	"github.com/flashbots-run/hindsight/search"
	"github.com/flashbots-run/hindsight/tradeparams"
)

// ChainReader is the full read-only chain-access surface the engine
// needs: transaction/receipt lookup for trade-parameter derivation,
// block lookup for EVM context, and the account/storage/code surface
// forkdb.Base needs to build a fork. chainclient.Client satisfies it.
type ChainReader interface {
	tradeparams.Caller
	tradeparams.ReceiptFetcher
	forkdb.ChainReader
	Transaction(ctx context.Context, hash common.Hash) (*types.Transaction, error)
	BlockWithTxs(ctx context.Context, number uint64) (*types.Block, error)
}

// Engine turns one landed-transaction hint into the backruns found for
// it, composing tradeparams.Derive (via pools.Discover) and
// search.FindOptimalBackrun.
type Engine struct {
	chain  ChainReader
	cfg    search.Config
	signer types.Signer
}

// New builds an Engine reading from chain, tuned by cfg (use
// search.DefaultConfig() for the reference INTERVALS/MAX_DEPTH).
func New(chain ChainReader, cfg search.Config) *Engine {
	return &Engine{chain: chain, cfg: cfg, signer: types.NewLondonSigner(big.NewInt(1))}
}

// Process implements orchestrator.Processor: derive this hint's
// UserSwaps, then fan out the bracketed search over every
// (UserSwap, alternatePool) pair.
func (e *Engine) Process(ctx context.Context, hint model.Hint) ([]model.SimArbResult, error) {
	tx, err := e.chain.Transaction(ctx, hint.TxHash)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, model.ErrTxNotLanded(hint.TxHash)
	}

	if hint.BlockNumber == 0 {
		return nil, model.ErrBlockNotFound(hint.BlockNumber)
	}
	forkBlock := hint.BlockNumber - 1

	swaps, err := tradeparams.Derive(ctx, e.chain, e.chain, hint, forkBlock)
	if err != nil {
		return nil, err
	}
	if len(swaps) == 0 {
		return nil, nil
	}

	block, err := e.chain.BlockWithTxs(ctx, hint.BlockNumber)
	if err != nil {
		return nil, err
	}
	blockCtx := model.BlockContext{
		Number:        hint.BlockNumber,
		Timestamp:     block.Time(),
		BaseFeePerGas: block.BaseFee(),
		GasLimit:      block.GasLimit(),
		GasUsed:       block.GasUsed(),
	}

	from, err := types.Sender(e.signer, tx)
	if err != nil {
		return nil, model.ErrEvmParseError(err, "recovering sender for %s", tx.Hash())
	}
	userTx := search.UserTx{
		From:     from,
		To:       tx.To(),
		Data:     tx.Data(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
	}

	base := forkdb.NewBase(e.chain, forkBlock)

	var results []model.SimArbResult
	for _, swap := range swaps {
		branchResults := search.FindOptimalBackrun(ctx, e.cfg, base, blockCtx, userTx, []model.UserSwap{swap})
		for _, br := range branchResults {
			results = append(results, model.SimArbResult{UserTrade: swap, BackrunTrade: br})
		}
	}

	log.Info("hindsight: processed hint", "tx", hint.TxHash, "swaps", len(swaps), "results", len(results))
	return results, nil
}
