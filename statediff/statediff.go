// Package statediff turns per-transaction state-diff traces for a block
// into a warm-set of (address, slot) pairs worth pre-loading into the Fork
// EVM's base cache before simulation. It never trusts the trace for
// concrete values — callers always re-fetch the concrete pre-value at
// block N-1 via the chain client.
package statediff

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/flashbots-run/hindsight/chainclient"
	"github.com/flashbots-run/hindsight/model"
)

// Build iterates the block traces in order and returns the touched set:
// for each (address, slot) pair, only the earliest occurrence is kept,
// since later occurrences reflect post-tx state we never want to trust.
func Build(traces []chainclient.BlockTrace) model.StateDiff {
	seen := make(map[model.StorageKey]struct{})
	var touched []model.StorageKey

	for _, trace := range traces {
		for addr, diff := range trace.StateDiff {
			if len(diff.StorageTouched) == 0 {
				key := model.StorageKey{Address: addr}
				if _, ok := seen[key]; !ok {
					seen[key] = struct{}{}
					touched = append(touched, key)
				}
				continue
			}
			for _, slot := range diff.StorageTouched {
				key := model.StorageKey{Address: addr, Slot: slot}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				touched = append(touched, key)
			}
		}
	}

	return model.StateDiff{Touched: touched}
}

// Addresses returns the distinct set of accounts named anywhere in a
// StateDiff, in first-seen order, useful for a bulk account-basic prefetch
// before per-slot warming.
func Addresses(diff model.StateDiff) []common.Address {
	seen := make(map[common.Address]struct{})
	var out []common.Address
	for _, key := range diff.Touched {
		if _, ok := seen[key.Address]; ok {
			continue
		}
		seen[key.Address] = struct{}{}
		out = append(out, key.Address)
	}
	return out
}
