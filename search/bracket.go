package search

import (
	"context"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/flashbots-run/hindsight/forkdb"
	"github.com/flashbots-run/hindsight/model"
)

// Config tunes the bracketed search; exposed so callers can override the
// reference defaults without editing code (see DESIGN.md Open Question
// resolutions).
type Config struct {
	Intervals int
	MaxDepth  int
}

// DefaultConfig returns the reference tuning: INTERVALS=15, MAX_DEPTH=7.
func DefaultConfig() Config {
	return Config{Intervals: model.DefaultSearchIntervals, MaxDepth: model.DefaultSearchMaxDepth}
}

type sample struct {
	amountIn *big.Int
	balance  *big.Int
	err      error
}

// bracketSearch performs a bracketed recursive search: starting from
// [0, b0], repeatedly sample INTERVALS points in parallel, keep the best,
// and narrow the bracket around it, until a stop condition fires.
func bracketSearch(ctx context.Context, cfg Config, base *forkdb.Base, blockCtx model.BlockContext, userTx UserTx, p path, b0 *big.Int) (*big.Int, *big.Int, error) {
	lo := big.NewInt(0)
	hi := new(big.Int).Set(b0)
	xBest := big.NewInt(0)
	fBest := new(big.Int).Set(b0)
	depth := 0

	for {
		diff := new(big.Int).Sub(hi, lo)
		loOverThousand := new(big.Int).Div(lo, big.NewInt(1000))
		if diff.Cmp(loOverThousand) <= 0 {
			return xBest, fBest, nil
		}
		if lo.Sign() == 0 && depth >= 3 && fBest.Cmp(b0) <= 0 {
			return big.NewInt(0), new(big.Int).Set(b0), nil
		}
		if depth > cfg.MaxDepth {
			return xBest, fBest, nil
		}

		bandWidth := new(big.Int).Sub(hi, lo)
		intervals := cfg.Intervals
		if intervals <= 0 {
			intervals = model.DefaultSearchIntervals
		}
		bandWidth.Div(bandWidth, big.NewInt(int64(intervals)))
		if bandWidth.Sign() == 0 {
			return xBest, fBest, nil
		}

		samples := make([]sample, intervals)
		for i := 0; i < intervals; i++ {
			samples[i].amountIn = new(big.Int).Add(lo, new(big.Int).Mul(bandWidth, big.NewInt(int64(i))))
		}

		g, _ := errgroup.WithContext(ctx)
		for i := range samples {
			i := i
			g.Go(func() error {
				balance, err := evaluate(base, blockCtx, userTx, p, samples[i].amountIn)
				samples[i].balance = balance
				samples[i].err = err
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}

		bestIdx := -1
		for i, s := range samples {
			if s.err != nil {
				continue
			}
			if bestIdx == -1 || s.balance.Cmp(samples[bestIdx].balance) > 0 {
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			return nil, nil, model.ErrAllSwapsReverted
		}
		if samples[bestIdx].balance.Cmp(fBest) > 0 {
			xBest = samples[bestIdx].amountIn
			fBest = samples[bestIdx].balance
		}

		newLo := new(big.Int).Sub(xBest, bandWidth)
		if newLo.Sign() < 0 {
			newLo = big.NewInt(0)
		}
		lo = newLo
		hi = new(big.Int).Add(xBest, bandWidth)
		depth++
	}
}
