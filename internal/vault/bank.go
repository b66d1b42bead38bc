package vault

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"VaultLedger/internal/fixmath"
)

var (
	ErrInsufficientFunds = errors.New("vault: holder balance below transfer amount")
	ErrInvalidAmount     = errors.New("vault: amount must be positive")
)

// TokenBank is the external collateral-token ledger the vault moves funds
// through. isLong selects the collateral side (volatile vs stable token).
// VaultBalance reports the tokens the bank currently attributes to the
// vault's own account; the engine re-derives its expected value after every
// transfer and treats a mismatch as fatal.
type TokenBank interface {
	VaultBalance(isLong bool) *big.Int
	TransferIn(isLong bool, from string, amount *big.Int) error
	TransferOut(isLong bool, to string, amount *big.Int) error
}

// MemoryBank is the in-process TokenBank backing tests and the running
// service. Holder balances are keyed by account id; the vault's account is
// the reserved id "vault".
type MemoryBank struct {
	mu       sync.Mutex
	balances [2]map[string]*big.Int // [0] short side, [1] long side
}

const vaultAccount = "vault"

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{
		balances: [2]map[string]*big.Int{
			make(map[string]*big.Int),
			make(map[string]*big.Int),
		},
	}
}

func sideIndex(isLong bool) int {
	if isLong {
		return 1
	}
	return 0
}

// Credit funds an account directly, outside the transfer paths. Test and
// bootstrap use only.
func (b *MemoryBank) Credit(isLong bool, holder string, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(isLong, holder, amount)
}

// BalanceOf reports one holder's balance on one side.
func (b *MemoryBank) BalanceOf(isLong bool, holder string) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.balances[sideIndex(isLong)][holder]; ok {
		return fixmath.Copy(v)
	}
	return big.NewInt(0)
}

func (b *MemoryBank) VaultBalance(isLong bool) *big.Int {
	return b.BalanceOf(isLong, vaultAccount)
}

func (b *MemoryBank) TransferIn(isLong bool, from string, amount *big.Int) error {
	return b.transfer(isLong, from, vaultAccount, amount)
}

func (b *MemoryBank) TransferOut(isLong bool, to string, amount *big.Int) error {
	return b.transfer(isLong, vaultAccount, to, amount)
}

func (b *MemoryBank) transfer(isLong bool, from, to string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	side := b.balances[sideIndex(isLong)]
	have := side[from]
	if have == nil || have.Cmp(amount) < 0 {
		return fmt.Errorf("%w: holder=%s have=%s want=%s", ErrInsufficientFunds, from, have, amount)
	}
	side[from] = fixmath.Sub(have, amount)
	b.add(isLong, to, amount)
	return nil
}

func (b *MemoryBank) add(isLong bool, holder string, amount *big.Int) {
	side := b.balances[sideIndex(isLong)]
	if cur, ok := side[holder]; ok {
		side[holder] = fixmath.Add(cur, amount)
		return
	}
	side[holder] = fixmath.Copy(amount)
}
