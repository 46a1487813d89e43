package forkevm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"

	"github.com/flashbots-run/hindsight/forkdb"
	"github.com/flashbots-run/hindsight/model"
)

// mainnetChainConfig pins the ruleset the fork EVM executes under. The
// engine back-tests recent history, so the merge/shanghai fork set is
// always active; callers never need to select a ruleset per block.
var mainnetChainConfig = &params.ChainConfig{
	ChainID:                       big.NewInt(1),
	HomesteadBlock:                big.NewInt(0),
	EIP150Block:                   big.NewInt(0),
	EIP155Block:                   big.NewInt(0),
	EIP158Block:                   big.NewInt(0),
	ByzantiumBlock:                big.NewInt(0),
	ConstantinopleBlock:           big.NewInt(0),
	PetersburgBlock:               big.NewInt(0),
	IstanbulBlock:                 big.NewInt(0),
	MuirGlacierBlock:              big.NewInt(0),
	BerlinBlock:                   big.NewInt(0),
	LondonBlock:                   big.NewInt(0),
	TerminalTotalDifficulty:       big.NewInt(0),
	TerminalTotalDifficultyPassed: true,
	ShanghaiTime:                  newUint64(0),
}

func newUint64(v uint64) *uint64 { return &v }

// EVM wraps a core/vm.EVM bound to one Sandbox. A fresh EVM is created for
// every leaf evaluation; one sandbox is used by exactly one task at a
// time and never shared.
type EVM struct {
	inner   *vm.EVM
	state   *stateDB
	sandbox *forkdb.Sandbox
}

// New builds an EVM bound to sandbox, executing at blockCtx.
func New(ctx context.Context, sandbox *forkdb.Sandbox, blockCtx model.BlockContext) *EVM {
	state := newStateDB(ctx, sandbox)

	vmBlockCtx := vm.BlockContext{
		CanTransfer: func(db vm.StateDB, addr common.Address, amount *big.Int) bool {
			return db.GetBalance(addr).Cmp(amount) >= 0
		},
		Transfer: func(db vm.StateDB, from, to common.Address, amount *big.Int) {
			db.SubBalance(from, amount)
			db.AddBalance(to, amount)
		},
		GetHash: func(number uint64) common.Hash {
			return sandbox.BlockHash(number)
		},
		BlockNumber: new(big.Int).SetUint64(blockCtx.Number),
		Time:        blockCtx.Timestamp,
		BaseFee:     blockCtx.BaseFeePerGas,
		GasLimit:    blockCtx.GasLimit,
	}

	inner := vm.NewEVM(vmBlockCtx, vm.TxContext{}, state, mainnetChainConfig, vm.Config{})

	return &EVM{inner: inner, state: state, sandbox: sandbox}
}

// Sandbox returns the overlay this EVM is bound to, so callers can seed
// storage/balances directly (the braindance helper's WETH balance writes)
// alongside EVM calls.
func (e *EVM) Sandbox() *forkdb.Sandbox { return e.sandbox }

// Err returns the first lazily-fetched state error observed by this EVM's
// StateDB adapter, if any.
func (e *EVM) Err() error { return e.state.Err() }

// Call executes a read-only or value-carrying message call against addr,
// returning the raw return data. It does not persist nonce/gas-price
// bookkeeping a real transaction would; callers that need full
// transaction semantics use CommitTransaction.
func (e *EVM) Call(from, to common.Address, input []byte, gas uint64, value *big.Int) ([]byte, error) {
	if value == nil {
		value = big.NewInt(0)
	}
	ret, _, err := e.inner.Call(vm.AccountRef(from), to, input, gas, value)
	if stateErr := e.state.Err(); stateErr != nil {
		return ret, model.ErrCallError(stateErr, "state fetch failed during call to %s", to)
	}
	if err != nil {
		return ret, model.ErrCallError(err, "call to %s reverted", to)
	}
	return ret, nil
}

// CommitTransaction applies a full signed transaction's message semantics:
// nonce bump on the sender, value transfer, and either a Call (tx.To set)
// or Create (tx.To nil). Used to commit the user's landed transaction
// before a backrun is evaluated against the resulting state.
func (e *EVM) CommitTransaction(from common.Address, to *common.Address, input []byte, gas uint64, gasPrice, value *big.Int) ([]byte, error) {
	nonce, err := e.sandbox.GetNonce(context.Background(), from)
	if err != nil {
		return nil, model.ErrCallError(err, "fetching nonce for %s", from)
	}
	e.sandbox.SetNonce(from, nonce+1)

	if value == nil {
		value = big.NewInt(0)
	}

	var ret []byte
	var vmErr error
	if to == nil {
		ret, _, _, vmErr = e.inner.Create(vm.AccountRef(from), input, gas, value)
	} else {
		ret, _, vmErr = e.inner.Call(vm.AccountRef(from), *to, input, gas, value)
	}

	if stateErr := e.state.Err(); stateErr != nil {
		return ret, model.ErrCallError(stateErr, "state fetch failed during transaction from %s", from)
	}
	if vmErr != nil {
		return ret, model.ErrSwapReverted(vmErr.Error())
	}
	return ret, nil
}
