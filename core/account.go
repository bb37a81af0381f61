package core

// account.go implements the derived account index: a keyed mapping of
// public key to Account plus an insertion-ordered roster, behind a single
// exclusive lock. Overflow checks use holiman/uint256 rather than relying
// on silent uint64 wraparound.

import (
	"math"
	"sync"

	"github.com/holiman/uint256"
)

// Account holds a public key, its key hash, balance, and nonce. Never
// destroyed once created.
type Account struct {
	PublicKey string `json:"public_key"`
	KeyHash   string `json:"key_hash"`
	Balance   uint64 `json:"balance"`
	Nonce     uint64 `json:"nonce"`
}

// AccountIndex is the keyed account mapping plus insertion-ordered roster,
// guarded by a single exclusive lock.
type AccountIndex struct {
	mu      sync.RWMutex
	byKey   map[string]*Account
	ordered []*Account
}

// NewAccountIndex constructs an empty account index.
func NewAccountIndex() *AccountIndex {
	return &AccountIndex{byKey: make(map[string]*Account)}
}

// Exists reports whether pk has an account.
func (ix *AccountIndex) Exists(pk string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.byKey[pk]
	return ok
}

// GetBalance returns the account's balance, or 0 with ErrUnknownAccount.
func (ix *AccountIndex) GetBalance(pk string) (uint64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	acc, ok := ix.byKey[pk]
	if !ok {
		return 0, ErrUnknownAccount
	}
	return acc.Balance, nil
}

// GetNonce returns the account's current nonce.
func (ix *AccountIndex) GetNonce(pk string) (uint64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	acc, ok := ix.byKey[pk]
	if !ok {
		return 0, ErrUnknownAccount
	}
	return acc.Nonce, nil
}

// GetKeyHash returns the account's key hash.
func (ix *AccountIndex) GetKeyHash(pk string) (string, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	acc, ok := ix.byKey[pk]
	if !ok {
		return "", ErrUnknownAccount
	}
	return acc.KeyHash, nil
}

// Insert adds a new zero-balance, zero-nonce account. Fails with
// ErrDuplicateAccount if pk already exists.
func (ix *AccountIndex) Insert(pk, keyHash string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.byKey[pk]; ok {
		return ErrDuplicateAccount
	}
	acc := &Account{PublicKey: pk, KeyHash: keyHash}
	ix.byKey[pk] = acc
	ix.ordered = append(ix.ordered, acc)
	return nil
}

// Credit adds delta to pk's balance, failing closed on overflow.
func (ix *AccountIndex) Credit(pk string, delta uint64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	acc, ok := ix.byKey[pk]
	if !ok {
		return ErrUnknownAccount
	}
	sum, overflow := addUint64(acc.Balance, delta)
	if overflow {
		return ErrBalanceOverflow
	}
	acc.Balance = sum
	return nil
}

// Debit subtracts delta from pk's balance, failing with
// ErrInsufficientFund if the balance is too low.
func (ix *AccountIndex) Debit(pk string, delta uint64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	acc, ok := ix.byKey[pk]
	if !ok {
		return ErrUnknownAccount
	}
	if acc.Balance < delta {
		return ErrInsufficientFund
	}
	acc.Balance -= delta
	return nil
}

// BumpNonce increments pk's nonce by one, failing closed on wraparound.
func (ix *AccountIndex) BumpNonce(pk string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	acc, ok := ix.byKey[pk]
	if !ok {
		return ErrUnknownAccount
	}
	if acc.Nonce == math.MaxUint64 {
		return ErrNonceOverflow
	}
	acc.Nonce++
	return nil
}

// Snapshot returns a defensive copy of the insertion-ordered account roster.
func (ix *AccountIndex) Snapshot() []Account {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Account, len(ix.ordered))
	for i, a := range ix.ordered {
		out[i] = *a
	}
	return out
}

// Install replaces the index contents wholesale (used by snapshot adoption).
func (ix *AccountIndex) Install(accounts []Account) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.byKey = make(map[string]*Account, len(accounts))
	ix.ordered = make([]*Account, 0, len(accounts))
	for i := range accounts {
		a := accounts[i]
		ix.byKey[a.PublicKey] = &a
		ix.ordered = append(ix.ordered, &a)
	}
}

// WouldOverflow reports, without mutating state, whether crediting pk by
// delta would overflow a uint64 balance. Used by the validator to decide a
// Faucet/Transaction request without committing the effect.
func (ix *AccountIndex) WouldOverflow(pk string, delta uint64) (bool, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	acc, ok := ix.byKey[pk]
	if !ok {
		return false, ErrUnknownAccount
	}
	_, overflow := addUint64(acc.Balance, delta)
	return overflow, nil
}

// addUint64 adds a and b using a 256-bit wide accumulator so overflow is
// detected explicitly instead of relying on Go's silent wraparound.
func addUint64(a, b uint64) (sum uint64, overflow bool) {
	wide := new(uint256.Int).SetUint64(a)
	wide.Add(wide, new(uint256.Int).SetUint64(b))
	if !wide.IsUint64() {
		return 0, true
	}
	return wide.Uint64(), false
}
