package search

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/flashbots-run/hindsight/forkdb"
	"github.com/flashbots-run/hindsight/forkevm"
	"github.com/flashbots-run/hindsight/model"
)

// runBranch resolves one (UserSwap, alternatePool) branch end to end:
// direction selection followed by the bracketed search. A branch-fatal
// error here means this branch contributes no result; siblings are
// unaffected.
func runBranch(ctx context.Context, cfg Config, base *forkdb.Base, blockCtx model.BlockContext, userTx UserTx, userSwap model.UserSwap, altPool model.PoolRef) (model.BraindanceResult, error) {
	directionSandbox := base.NewSandbox()
	directionEVM := forkevm.New(ctx, directionSandbox, blockCtx)

	p, err := resolveDirection(directionEVM, userTx, userSwap, altPool)
	if err != nil {
		return model.BraindanceResult{}, err
	}

	b0 := model.StartingBalance()
	xBest, fBest, err := bracketSearch(ctx, cfg, base, blockCtx, userTx, p, b0)
	if err != nil {
		return model.BraindanceResult{}, err
	}

	return model.BraindanceResult{
		AmountIn:     xBest,
		BalanceEnd:   fBest,
		Profit:       model.Profit(fBest, b0),
		StartPool:    p.startPool,
		EndPool:      p.endPool,
		StartVariant: p.startVariant,
		EndVariant:   p.endVariant,
	}, nil
}

// FindOptimalBackrun fans out one task per (UserSwap, alternatePool) pair
// across every derived swap. Branch-fatal errors are dropped silently
// (the branch contributes no result); only successful branches are
// returned.
func FindOptimalBackrun(ctx context.Context, cfg Config, base *forkdb.Base, blockCtx model.BlockContext, userTx UserTx, swaps []model.UserSwap) []model.BraindanceResult {
	type branchKey struct {
		swapIdx int
		altIdx  int
	}

	var keys []branchKey
	for si, s := range swaps {
		for ai := range s.CandidateArbPools {
			keys = append(keys, branchKey{swapIdx: si, altIdx: ai})
		}
	}
	if len(keys) == 0 {
		return nil
	}

	results := make([]*model.BraindanceResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range keys {
		i, k := i, k
		g.Go(func() error {
			swap := swaps[k.swapIdx]
			alt := swap.CandidateArbPools[k.altIdx]
			r, err := runBranch(gctx, cfg, base, blockCtx, userTx, swap, alt)
			if err != nil {
				return nil // point/branch failure: dropped, siblings continue
			}
			results[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	var out []model.BraindanceResult
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
