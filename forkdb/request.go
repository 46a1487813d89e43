package forkdb

import "github.com/ethereum/go-ethereum/common"

// fetchKey identifies one lazily-fetched datum: either an account's basic
// info, one storage slot, or its bytecode.
type fetchKey struct {
	kind    fetchKind
	address common.Address
	slot    common.Hash
}

type fetchKind uint8

const (
	fetchAccount fetchKind = iota
	fetchStorage
	fetchCode
)

// fetchResult carries either a value or an error back to every waiter of
// an in-flight fetch.
type fetchResult struct {
	account AccountInfo
	storage common.Hash
	code    []byte
	err     error
}

// inflight coalesces concurrent requests for the same fetchKey: the first
// caller performs the remote fetch and closes done to wake every other
// caller waiting on the same key. This mirrors the one-shot reply-channel
// pattern a cyclic ForkDB-to-backend reference would otherwise require —
// here the database never needs a reference back to a backend goroutine at
// all, since the channel is keyed and short-lived per request rather than
// per connection.
type inflight struct {
	done   chan struct{}
	result fetchResult
}
