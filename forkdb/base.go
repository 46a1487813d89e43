// Package forkdb implements the Fork EVM's two-tier backing store: a
// lazily-fetched, remote-backed Base shared read-only across evaluations,
// and a per-evaluation writable Sandbox overlay.
package forkdb

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"

	"github.com/flashbots-run/hindsight/chainclient"
)

const (
	numShards          = 16
	shardCacheSize     = 4096
	maxConcurrentFetch = 32
	codeCacheBytes     = 32 << 20 // 32MiB, sized by payload bytes rather than item count
)

// AccountInfo is the basic account summary the Base cache memoizes.
type AccountInfo struct {
	Balance  *big.Int
	Nonce    uint64
	CodeHash common.Hash
}

// ChainReader is the subset of chainclient.Client the base cache needs;
// narrowed to keep the dependency testable with a fake.
type ChainReader interface {
	AccountBasic(ctx context.Context, addr common.Address, blockNumber uint64) (chainclient.AccountBasic, error)
	Storage(ctx context.Context, addr common.Address, slot common.Hash, blockNumber uint64) (common.Hash, error)
	Code(ctx context.Context, addr common.Address, blockNumber uint64) ([]byte, error)
}

// accountShard memoizes AccountInfo and per-account storage for a subset
// of addresses, guarded by its own lock so unrelated addresses never
// contend: synchronization is per-account, never global.
type accountShard struct {
	mu       sync.RWMutex
	accounts *lru.Cache[common.Address, AccountInfo]
	storage  *lru.Cache[common.Hash, common.Hash] // key: keccak(address||slot)
}

func newShard() *accountShard {
	accounts, _ := lru.New[common.Address, AccountInfo](shardCacheSize)
	storage, _ := lru.New[common.Hash, common.Hash](shardCacheSize)
	return &accountShard{accounts: accounts, storage: storage}
}

// Base is the lazy, remote-backed, shared read tier of the Fork EVM cache.
// It is safe for concurrent use by many sandboxes at once.
type Base struct {
	client      ChainReader
	blockNumber uint64

	shards   [numShards]*accountShard
	fetchSem *semaphore.Weighted

	// codeCache holds memoized bytecode keyed by address. Bytecode payloads
	// range from empty (EOAs) to tens of kilobytes (large contracts), which
	// fits a byte-size-bounded cache better than the item-count-bounded
	// lru.Cache used for the fixed-size account/storage entries above.
	codeCache *fastcache.Cache

	inflightMu sync.Mutex
	inflight   map[fetchKey]*inflight
}

// NewBase constructs a Base pinned to blockNumber (callers always pin to
// userTxBlock-1, the last block before the transaction being backtested).
func NewBase(client ChainReader, blockNumber uint64) *Base {
	b := &Base{
		client:      client,
		blockNumber: blockNumber,
		fetchSem:    semaphore.NewWeighted(maxConcurrentFetch),
		codeCache:   fastcache.New(codeCacheBytes),
		inflight:    make(map[fetchKey]*inflight),
	}
	for i := range b.shards {
		b.shards[i] = newShard()
	}
	return b
}

func (b *Base) shardFor(addr common.Address) *accountShard {
	return b.shards[int(addr[len(addr)-1])%numShards]
}

// storageCacheKey disambiguates storage entries across accounts within a
// shard's single flat storage cache.
func storageCacheKey(addr common.Address, slot common.Hash) common.Hash {
	return crypto.Keccak256Hash(addr.Bytes(), slot.Bytes())
}

// AccountInfo returns an account's memoized basic info, fetching and
// caching it on first access.
func (b *Base) AccountInfo(ctx context.Context, addr common.Address) (AccountInfo, error) {
	shard := b.shardFor(addr)

	shard.mu.RLock()
	if info, ok := shard.accounts.Get(addr); ok {
		shard.mu.RUnlock()
		return info, nil
	}
	shard.mu.RUnlock()

	res, err := b.coalescedFetch(ctx, fetchKey{kind: fetchAccount, address: addr}, func(ctx context.Context) fetchResult {
		ab, err := b.client.AccountBasic(ctx, addr, b.blockNumber)
		if err != nil {
			return fetchResult{err: fmt.Errorf("forkdb: account %s: %w", addr, err)}
		}
		return fetchResult{account: AccountInfo{Balance: ab.Balance, Nonce: ab.Nonce, CodeHash: ab.CodeHash}}
	})
	if res.err != nil {
		return AccountInfo{}, res.err
	}

	shard.mu.Lock()
	shard.accounts.Add(addr, res.account)
	shard.mu.Unlock()
	return res.account, nil
}

// Storage returns one memoized storage slot, fetching and caching it on
// first access. Concurrent misses on the same (address, slot) are
// coalesced into a single remote fetch.
func (b *Base) Storage(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	shard := b.shardFor(addr)
	cacheKey := storageCacheKey(addr, slot)

	shard.mu.RLock()
	if val, ok := shard.storage.Get(cacheKey); ok {
		shard.mu.RUnlock()
		return val, nil
	}
	shard.mu.RUnlock()

	res, err := b.coalescedFetch(ctx, fetchKey{kind: fetchStorage, address: addr, slot: slot}, func(ctx context.Context) fetchResult {
		val, err := b.client.Storage(ctx, addr, slot, b.blockNumber)
		if err != nil {
			return fetchResult{err: fmt.Errorf("forkdb: storage %s/%s: %w", addr, slot, err)}
		}
		return fetchResult{storage: val}
	})
	if res.err != nil {
		return common.Hash{}, res.err
	}

	shard.mu.Lock()
	shard.storage.Add(cacheKey, res.storage)
	shard.mu.Unlock()
	return res.storage, nil
}

// Code returns an account's memoized bytecode, fetching and caching it on
// first access. codeCache is already internally sharded and concurrency-
// safe, so unlike AccountInfo/Storage this needs no accountShard lock.
func (b *Base) Code(ctx context.Context, addr common.Address) ([]byte, error) {
	key := addr.Bytes()
	if code, ok := b.codeCache.HasGet(nil, key); ok {
		return code, nil
	}

	res, err := b.coalescedFetch(ctx, fetchKey{kind: fetchCode, address: addr}, func(ctx context.Context) fetchResult {
		code, err := b.client.Code(ctx, addr, b.blockNumber)
		if err != nil {
			return fetchResult{err: fmt.Errorf("forkdb: code %s: %w", addr, err)}
		}
		return fetchResult{code: code}
	})
	if res.err != nil {
		return nil, res.err
	}

	b.codeCache.Set(key, res.code)
	return res.code, nil
}

// coalescedFetch runs fn at most once per distinct key concurrently: the
// first caller acquires the fetch semaphore and performs the fetch; any
// caller arriving while a fetch for the same key is in flight waits on the
// first caller's result instead of issuing a duplicate RPC.
func (b *Base) coalescedFetch(ctx context.Context, key fetchKey, fn func(context.Context) fetchResult) (fetchResult, error) {
	b.inflightMu.Lock()
	if existing, ok := b.inflight[key]; ok {
		b.inflightMu.Unlock()
		select {
		case <-existing.done:
			return existing.result, existing.result.err
		case <-ctx.Done():
			return fetchResult{}, ctx.Err()
		}
	}

	fl := &inflight{done: make(chan struct{})}
	b.inflight[key] = fl
	b.inflightMu.Unlock()

	if err := b.fetchSem.Acquire(ctx, 1); err != nil {
		fl.result = fetchResult{err: err}
		close(fl.done)
		b.inflightMu.Lock()
		delete(b.inflight, key)
		b.inflightMu.Unlock()
		return fl.result, err
	}
	res := fn(ctx)
	b.fetchSem.Release(1)

	fl.result = res
	close(fl.done)

	b.inflightMu.Lock()
	delete(b.inflight, key)
	b.inflightMu.Unlock()

	return res, res.err
}
