// Package chainclient provides the archive-node RPC surface the rest of
// the pipeline depends on: block/tx/receipt lookups, state-diff traces,
// and the account/storage/code primitives the Fork EVM's base cache uses
// to lazily warm itself.
package chainclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/flashbots-run/hindsight/model"
)

// Config tunes the reconnect budget and concurrency ceiling of a Client.
type Config struct {
	Endpoint           string
	MaxReconnects      int
	MaxConcurrentCalls int64
}

func (c Config) withDefaults() Config {
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 5
	}
	if c.MaxConcurrentCalls == 0 {
		c.MaxConcurrentCalls = 64
	}
	return c
}

// Client is a reconnecting, bounded-concurrency wrapper around an
// archive-node JSON-RPC endpoint. It is safe for concurrent use: many
// lightweight callers may share one Client.
//
// invariant: rpcClient, ethClient, reconnects and closed are only ever
// read/written under lock, mirroring the request-accounting discipline of a
// bounded concurrent request tracker.
type Client struct {
	cfg Config

	lock          sync.RWMutex
	rpcClient     *rpc.Client
	ethClient     *ethclient.Client
	reconnects    int
	closed        bool
	activeCalls   *semaphore.Weighted
	keepalive     *keepaliveProber

	callsTotal   prometheus.Counter
	callErrors   prometheus.Counter
	callDuration prometheus.Histogram
}

// Dial connects to the archive node and returns a ready Client.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	rc, err := rpc.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("chainclient: dial %s: %w", cfg.Endpoint, err)
	}

	c := &Client{
		cfg:         cfg,
		rpcClient:   rc,
		ethClient:   ethclient.NewClient(rc),
		activeCalls: semaphore.NewWeighted(cfg.MaxConcurrentCalls),
		callsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hindsight_chainclient_calls_total",
			Help: "Total RPC calls issued by the chain client.",
		}),
		callErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hindsight_chainclient_call_errors_total",
			Help: "Total RPC calls that returned an error.",
		}),
		callDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "hindsight_chainclient_call_duration_seconds",
			Help: "RPC call latency.",
		}),
	}
	c.keepalive = newKeepaliveProber(cfg.Endpoint, c.onConnectionDead)

	log.Info("chainclient: connected", "endpoint", cfg.Endpoint)
	return c, nil
}

// onConnectionDead is invoked by the keepalive prober when it detects the
// archive node is unreachable; it drives the bounded reconnect loop.
func (c *Client) onConnectionDead() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return
	}
	if c.reconnects >= c.cfg.MaxReconnects {
		log.Error("chainclient: reconnect budget exhausted, closing", "endpoint", c.cfg.Endpoint, "attempts", c.reconnects)
		c.closed = true
		return
	}

	c.reconnects++
	log.Warn("chainclient: connection lost, reconnecting", "endpoint", c.cfg.Endpoint, "attempt", c.reconnects)

	rc, err := rpc.Dial(c.cfg.Endpoint)
	if err != nil {
		log.Warn("chainclient: reconnect attempt failed", "endpoint", c.cfg.Endpoint, "attempt", c.reconnects, "error", err)
		return
	}
	c.rpcClient = rc
	c.ethClient = ethclient.NewClient(rc)
}

// call runs fn under the concurrency semaphore, bumping metrics and
// refusing the call outright once the client has exhausted its reconnect
// budget.
func (c *Client) call(ctx context.Context, fn func(*ethclient.Client, *rpc.Client) error) error {
	c.lock.RLock()
	closed := c.closed
	c.lock.RUnlock()
	if closed {
		return model.ErrChainClientClosed
	}

	if err := c.activeCalls.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("chainclient: acquiring call slot: %w", err)
	}
	defer c.activeCalls.Release(1)

	c.lock.RLock()
	ec, rc := c.ethClient, c.rpcClient
	c.lock.RUnlock()

	c.callsTotal.Inc()
	start := time.Now()
	err := fn(ec, rc)
	c.callDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.callErrors.Inc()
		return err
	}
	return nil
}

// BlockWithTxs fetches a full block including its transactions.
func (c *Client) BlockWithTxs(ctx context.Context, number uint64) (*types.Block, error) {
	var block *types.Block
	err := c.call(ctx, func(ec *ethclient.Client, _ *rpc.Client) error {
		b, err := ec.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		if errors.Is(err, ethereum.NotFound) {
			return model.ErrBlockNotFound(number)
		}
		if err != nil {
			return fmt.Errorf("chainclient: block %d: %w", number, err)
		}
		block = b
		return nil
	})
	return block, err
}

// Transaction fetches a transaction by hash; returns (nil, nil) if absent.
func (c *Client) Transaction(ctx context.Context, hash common.Hash) (*types.Transaction, error) {
	var tx *types.Transaction
	err := c.call(ctx, func(ec *ethclient.Client, _ *rpc.Client) error {
		t, _, err := ec.TransactionByHash(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("chainclient: tx %s: %w", hash, err)
		}
		tx = t
		return nil
	})
	return tx, err
}

// TransactionReceipt fetches a transaction's receipt; returns (nil, nil) if
// absent (the caller classifies this as model.ErrTxNotLanded where that
// matters).
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.call(ctx, func(ec *ethclient.Client, _ *rpc.Client) error {
		r, err := ec.TransactionReceipt(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("chainclient: receipt %s: %w", hash, err)
		}
		receipt = r
		return nil
	})
	return receipt, err
}

// BlockTrace is one transaction's state-diff trace within traceCallMany's
// response, as consumed by the statediff builder.
type BlockTrace struct {
	TxHash    common.Hash
	StateDiff map[common.Address]AccountDiff
}

// AccountDiff is the per-account portion of a state-diff trace.
type AccountDiff struct {
	StorageTouched []common.Hash
}

// TraceCallMany runs trace_callMany (or an equivalent state-diff trace)
// for every transaction of a block, against the parent block's state, and
// returns their state diffs in block order.
func (c *Client) TraceCallMany(ctx context.Context, txs []*types.Transaction, blockNumber uint64) ([]BlockTrace, error) {
	var out []BlockTrace
	err := c.call(ctx, func(_ *ethclient.Client, rc *rpc.Client) error {
		type rawDiff struct {
			StateDiff map[common.Address]struct {
				Storage map[common.Hash]json.RawMessage `json:"storage"`
			} `json:"stateDiff"`
		}
		var raws []rawDiff
		if err := rc.CallContext(ctx, &raws, "trace_callMany", traceCallManyParams(txs, blockNumber)...); err != nil {
			return fmt.Errorf("chainclient: trace_callMany at block %d: %w", blockNumber, err)
		}
		for i, r := range raws {
			ad := make(map[common.Address]AccountDiff, len(r.StateDiff))
			for addr, d := range r.StateDiff {
				slots := make([]common.Hash, 0, len(d.Storage))
				for slot := range d.Storage {
					slots = append(slots, slot)
				}
				ad[addr] = AccountDiff{StorageTouched: slots}
			}
			var hash common.Hash
			if i < len(txs) {
				hash = txs[i].Hash()
			}
			out = append(out, BlockTrace{TxHash: hash, StateDiff: ad})
		}
		return nil
	})
	return out, err
}

// AccountBasic is the minimal account summary the base cache memoizes.
type AccountBasic struct {
	Balance  *big.Int
	Nonce    uint64
	CodeHash common.Hash
}

// AccountBasic fetches balance, nonce, and code hash at a given block.
func (c *Client) AccountBasic(ctx context.Context, addr common.Address, blockNumber uint64) (AccountBasic, error) {
	var out AccountBasic
	err := c.call(ctx, func(ec *ethclient.Client, _ *rpc.Client) error {
		blockNum := new(big.Int).SetUint64(blockNumber)
		balance, err := ec.BalanceAt(ctx, addr, blockNum)
		if err != nil {
			return fmt.Errorf("chainclient: balance %s at %d: %w", addr, blockNumber, err)
		}
		nonce, err := ec.NonceAt(ctx, addr, blockNum)
		if err != nil {
			return fmt.Errorf("chainclient: nonce %s at %d: %w", addr, blockNumber, err)
		}
		code, err := ec.CodeAt(ctx, addr, blockNum)
		if err != nil {
			return fmt.Errorf("chainclient: code %s at %d: %w", addr, blockNumber, err)
		}
		codeHash := crypto.Keccak256Hash(code)
		if len(code) == 0 {
			codeHash = types.EmptyCodeHash
		}
		out = AccountBasic{Balance: balance, Nonce: nonce, CodeHash: codeHash}
		return nil
	})
	return out, err
}

// Storage fetches one storage slot at a given block.
func (c *Client) Storage(ctx context.Context, addr common.Address, slot common.Hash, blockNumber uint64) (common.Hash, error) {
	var out common.Hash
	err := c.call(ctx, func(ec *ethclient.Client, _ *rpc.Client) error {
		val, err := ec.StorageAt(ctx, addr, slot, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			return fmt.Errorf("chainclient: storage %s/%s at %d: %w", addr, slot, blockNumber, err)
		}
		out = common.BytesToHash(val)
		return nil
	})
	return out, err
}

// Code fetches an account's bytecode at a given block.
func (c *Client) Code(ctx context.Context, addr common.Address, blockNumber uint64) ([]byte, error) {
	var out []byte
	err := c.call(ctx, func(ec *ethclient.Client, _ *rpc.Client) error {
		code, err := ec.CodeAt(ctx, addr, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			return fmt.Errorf("chainclient: code %s at %d: %w", addr, blockNumber, err)
		}
		out = code
		return nil
	})
	return out, err
}

// Balance fetches an account's wei balance at a given block.
func (c *Client) Balance(ctx context.Context, addr common.Address, blockNumber uint64) (*big.Int, error) {
	var out *big.Int
	err := c.call(ctx, func(ec *ethclient.Client, _ *rpc.Client) error {
		b, err := ec.BalanceAt(ctx, addr, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			return fmt.Errorf("chainclient: balance %s at %d: %w", addr, blockNumber, err)
		}
		out = b
		return nil
	})
	return out, err
}

// TransactionCount fetches an account's nonce at a given block.
func (c *Client) TransactionCount(ctx context.Context, addr common.Address, blockNumber uint64) (uint64, error) {
	var out uint64
	err := c.call(ctx, func(ec *ethclient.Client, _ *rpc.Client) error {
		n, err := ec.NonceAt(ctx, addr, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			return fmt.Errorf("chainclient: nonce %s at %d: %w", addr, blockNumber, err)
		}
		out = n
		return nil
	})
	return out, err
}

// Call executes a read-only eth_call against a pinned block.
func (c *Client) Call(ctx context.Context, msg ethereum.CallMsg, blockNumber uint64) ([]byte, error) {
	var out []byte
	err := c.call(ctx, func(ec *ethclient.Client, _ *rpc.Client) error {
		res, err := ec.CallContract(ctx, msg, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			return fmt.Errorf("chainclient: call %s at %d: %w", msg.To, blockNumber, err)
		}
		out = res
		return nil
	})
	return out, err
}

// Close shuts the client down; subsequent calls fail with
// model.ErrChainClientClosed.
func (c *Client) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.keepalive.stop()
	c.rpcClient.Close()
}
