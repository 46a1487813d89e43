// Package orchestrator drives batches of landed-transaction hints through
// an arb-search processor and hands non-empty results to a sink.
package orchestrator

import (
	"context"
	"math/big"
	"runtime"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/flashbots-run/hindsight/model"
)

// EventSource produces the next hint to process. Next returns ok=false
// once the source is exhausted.
type EventSource interface {
	Next(ctx context.Context) (hint model.Hint, ok bool, err error)
}

// Sink receives one non-empty SimArbBatch per processed hint.
type Sink interface {
	WriteArbs(ctx context.Context, batch model.SimArbBatch) error
}

// Processor turns one hint into the list of SimArbResults found for it —
// satisfied by engine.Engine; kept as a narrow interface here so the
// orchestrator has no dependency on chain access or the search engine.
type Processor interface {
	Process(ctx context.Context, hint model.Hint) ([]model.SimArbResult, error)
}

// BatchSize returns max(1, availableCores/2), the default batch width.
func BatchSize() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}

// Run drains source in sequential batches of size batchSize, each batch
// fanning its hints out to proc concurrently; batch N+1 does not start
// until batch N's every result has been handed to sink.
func Run(ctx context.Context, source EventSource, proc Processor, sink Sink, batchSize int) error {
	if batchSize < 1 {
		batchSize = BatchSize()
	}

	for {
		batch, err := collectBatch(ctx, source, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := processBatch(ctx, proc, sink, batch); err != nil {
			return err
		}
	}
}

func collectBatch(ctx context.Context, source EventSource, batchSize int) ([]model.Hint, error) {
	batch := make([]model.Hint, 0, batchSize)
	for len(batch) < batchSize {
		hint, ok, err := source.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		batch = append(batch, hint)
	}
	return batch, nil
}

// processBatch spawns one task per hint in the batch, waits for all of
// them, then hands every non-empty SimArbBatch to the sink in task order.
// A single hint's processing failure is logged and elided; it never
// aborts its batch siblings.
func processBatch(ctx context.Context, proc Processor, sink Sink, batch []model.Hint) error {
	outputs := make([]*model.SimArbBatch, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for i, hint := range batch {
		i, hint := i, hint
		g.Go(func() error {
			results, err := proc.Process(gctx, hint)
			if err != nil {
				log.Warn("hindsight: hint processing failed", "tx", hint.TxHash, "err", err)
				return nil
			}
			if len(results) == 0 {
				return nil
			}
			outputs[i] = &model.SimArbBatch{
				Event:     hint,
				Results:   results,
				MaxProfit: maxProfit(results),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, out := range outputs {
		if out == nil {
			continue
		}
		if err := sink.WriteArbs(ctx, *out); err != nil {
			return err
		}
	}
	return nil
}

func maxProfit(results []model.SimArbResult) *big.Int {
	best := big.NewInt(0)
	for _, r := range results {
		if r.BackrunTrade.Profit != nil && r.BackrunTrade.Profit.Cmp(best) > 0 {
			best = r.BackrunTrade.Profit
		}
	}
	return best
}
