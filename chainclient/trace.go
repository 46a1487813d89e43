package chainclient

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// traceCallManyParams builds the trace_callMany positional parameter list:
// one (callObject, ["stateDiff"]) pair per transaction, evaluated against
// the block preceding blockNumber (trace_callMany runs against the parent
// state, replaying each call in order).
func traceCallManyParams(txs []*types.Transaction, blockNumber uint64) []any {
	calls := make([]any, 0, len(txs))
	for _, tx := range txs {
		call := map[string]any{
			"gas":   hexutil.EncodeUint64(tx.Gas()),
			"value": hexutil.EncodeBig(tx.Value()),
			"data":  hexutil.Encode(tx.Data()),
		}
		if to := tx.To(); to != nil {
			call["to"] = to.Hex()
		}
		if gp := tx.GasPrice(); gp != nil {
			call["gasPrice"] = hexutil.EncodeBig(gp)
		}
		calls = append(calls, []any{call, []string{"stateDiff"}})
	}
	parent := new(big.Int).SetUint64(blockNumber - 1)
	return []any{calls, hexutil.EncodeBig(parent)}
}
