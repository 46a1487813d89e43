package forkdb

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// sandboxAccount is a Sandbox-local, possibly partial override of an
// account: any nil field falls through to Base.
type sandboxAccount struct {
	balance  *big.Int
	nonce    *uint64
	code     []byte
	codeHash *common.Hash
	storage  map[common.Hash]common.Hash
}

// Sandbox is the copy-on-write overlay bound to exactly one simulation.
// Writes land only in the overlay; reads fall through to the shared Base.
// It must never be shared across concurrent evaluations.
type Sandbox struct {
	base *Base

	mu       sync.Mutex
	accounts map[common.Address]*sandboxAccount
}

// NewSandbox produces a fresh writable overlay over base, the engine-facing
// entry point for starting one evaluation.
func (b *Base) NewSandbox() *Sandbox {
	return &Sandbox{base: b, accounts: make(map[common.Address]*sandboxAccount)}
}

func (s *Sandbox) account(addr common.Address) *sandboxAccount {
	a, ok := s.accounts[addr]
	if !ok {
		a = &sandboxAccount{storage: make(map[common.Hash]common.Hash)}
		s.accounts[addr] = a
	}
	return a
}

// InsertAccountInfo explicitly pre-fills an account's balance/nonce/code
// into the overlay, bypassing Base entirely. Used by the EVM StateDB
// adapter's CreateAccount.
func (s *Sandbox) InsertAccountInfo(addr common.Address, balance *big.Int, nonce uint64, code []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.account(addr)
	a.balance = new(big.Int).Set(balance)
	a.nonce = &nonce
	a.code = code
}

// InsertAccountStorage explicitly pre-fills one storage slot into the
// overlay. Used to seed the braindance helper's WETH balanceOf slot.
func (s *Sandbox) InsertAccountStorage(addr common.Address, slot, value common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.account(addr).storage[slot] = value
}

// GetBalance returns the overlay's balance for addr if set, else falls
// through to Base.
func (s *Sandbox) GetBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	s.mu.Lock()
	if a, ok := s.accounts[addr]; ok && a.balance != nil {
		bal := new(big.Int).Set(a.balance)
		s.mu.Unlock()
		return bal, nil
	}
	s.mu.Unlock()

	info, err := s.base.AccountInfo(ctx, addr)
	if err != nil {
		return nil, err
	}
	if info.Balance == nil {
		return big.NewInt(0), nil
	}
	return info.Balance, nil
}

// SetBalance overwrites addr's overlay balance.
func (s *Sandbox) SetBalance(addr common.Address, balance *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account(addr).balance = new(big.Int).Set(balance)
}

// GetNonce returns the overlay's nonce for addr if set, else falls through
// to Base.
func (s *Sandbox) GetNonce(ctx context.Context, addr common.Address) (uint64, error) {
	s.mu.Lock()
	if a, ok := s.accounts[addr]; ok && a.nonce != nil {
		n := *a.nonce
		s.mu.Unlock()
		return n, nil
	}
	s.mu.Unlock()

	info, err := s.base.AccountInfo(ctx, addr)
	if err != nil {
		return 0, err
	}
	return info.Nonce, nil
}

// SetNonce overwrites addr's overlay nonce.
func (s *Sandbox) SetNonce(addr common.Address, nonce uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account(addr).nonce = &nonce
}

// GetCode returns the overlay's code for addr if set, else falls through
// to Base.
func (s *Sandbox) GetCode(ctx context.Context, addr common.Address) ([]byte, error) {
	s.mu.Lock()
	if a, ok := s.accounts[addr]; ok && a.code != nil {
		code := a.code
		s.mu.Unlock()
		return code, nil
	}
	s.mu.Unlock()

	return s.base.Code(ctx, addr)
}

// SetCode overwrites addr's overlay code.
func (s *Sandbox) SetCode(addr common.Address, code []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account(addr).code = code
}

// GetState returns one storage slot: the overlay's value if written,
// else falls through to Base.
func (s *Sandbox) GetState(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	s.mu.Lock()
	if a, ok := s.accounts[addr]; ok {
		if val, ok := a.storage[slot]; ok {
			s.mu.Unlock()
			return val, nil
		}
	}
	s.mu.Unlock()

	return s.base.Storage(ctx, addr, slot)
}

// SetState overwrites one storage slot in the overlay.
func (s *Sandbox) SetState(addr common.Address, slot, value common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account(addr).storage[slot] = value
}

// BlockHash returns the sentinel empty-keccak hash for every block number,
// the pinned block included; no block hash is fetched from the chain. The
// EVM expects a value here and never a fallible lookup.
func (s *Sandbox) BlockHash(number uint64) common.Hash {
	return emptyKeccak
}

var emptyKeccak = emptyKeccakHash()
