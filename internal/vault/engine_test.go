package vault_test

import (
	"errors"
	"math/big"
	"testing"

	"VaultLedger/internal/fixmath"
	"VaultLedger/internal/oracle"
	"VaultLedger/internal/vault"
)

type stubBorrowFees struct{ usd *big.Int }

func (s *stubBorrowFees) PendingBorrowFeesUsd() *big.Int { return fixmath.Copy(s.usd) }

type stubPnl struct{ usd *big.Int }

func (s *stubPnl) CumulativeNetPnl(string) *big.Int { return fixmath.Copy(s.usd) }

// Fee rates used across the tests: 0.3% base, 1% surcharge cap.
var (
	testBaseFee  = fixmath.PercentOf(fixmath.Wad, 30)
	testFeeScale = fixmath.PercentOf(fixmath.Wad, 100)
)

func testVaultConfig() vault.Config {
	return vault.Config{
		Market:        "core",
		LongTicker:    "WETH",
		ShortTicker:   "USDC",
		LongBaseUnit:  fixmath.Copy(fixmath.Wad),
		ShortBaseUnit: fixmath.Copy(fixmath.Wad),
		Fees:          vault.FeeConfig{BaseFee: testBaseFee, FeeScale: testFeeScale},
	}
}

// flatSnapshot prices both collateral tokens at exactly one USD.
func flatSnapshot() *oracle.Snapshot {
	one := oracle.Price{Bid: fixmath.Copy(fixmath.Wad), Ask: fixmath.Copy(fixmath.Wad)}
	return &oracle.Snapshot{Prices: map[string]oracle.Price{"WETH": one, "USDC": one}}
}

func newTestVault(t *testing.T) (*vault.Engine, *vault.MemoryBank) {
	t.Helper()
	bank := vault.NewMemoryBank()
	e := vault.NewEngine(testVaultConfig(), bank, &stubBorrowFees{usd: big.NewInt(0)}, &stubPnl{usd: big.NewInt(0)})
	return e, bank
}

func fund(bank *vault.MemoryBank, isLong bool, holder string, amount int64) {
	bank.Credit(isLong, holder, fixmath.NewUsd(amount))
}

func TestExecuteDeposit_Bootstrap(t *testing.T) {
	e, bank := newTestVault(t)
	fund(bank, false, "alice", 1_000_000)

	amount := fixmath.NewUsd(1_000_000)
	res, err := e.ExecuteDeposit("alice", false, amount, flatSnapshot())
	if err != nil {
		t.Fatalf("ExecuteDeposit: %v", err)
	}

	// Empty pool: base fee only, shares minted 1:1 off after-fee USD value.
	wantShares := fixmath.Sub(amount, fixmath.WadMul(amount, testBaseFee))
	if res.SharesMinted.Cmp(wantShares) != 0 {
		t.Errorf("shares = %s, want %s", res.SharesMinted, wantShares)
	}
	if e.Balance(false).Cmp(amount) != 0 {
		t.Errorf("balance = %s, want full deposit %s", e.Balance(false), amount)
	}
	wantFees := fixmath.WadMul(amount, testBaseFee)
	if e.AccumulatedFees(false).Cmp(wantFees) != 0 {
		t.Errorf("accumulated fees = %s, want %s", e.AccumulatedFees(false), wantFees)
	}
	if e.TotalSupply().Cmp(wantShares) != 0 {
		t.Errorf("supply = %s, want %s", e.TotalSupply(), wantShares)
	}
	if e.SharesOf("alice").Cmp(wantShares) != 0 {
		t.Errorf("alice holds %s, want %s", e.SharesOf("alice"), wantShares)
	}
}

func TestExecuteDeposit_InsufficientHolderFunds(t *testing.T) {
	e, bank := newTestVault(t)
	fund(bank, false, "alice", 10)

	_, err := e.ExecuteDeposit("alice", false, fixmath.NewUsd(100), flatSnapshot())
	if !errors.Is(err, vault.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if e.Balance(false).Sign() != 0 || e.TotalSupply().Sign() != 0 {
		t.Errorf("failed deposit mutated ledger: balance=%s supply=%s", e.Balance(false), e.TotalSupply())
	}
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	e, bank := newTestVault(t)
	fund(bank, false, "alice", 1_000_000)

	amount := fixmath.NewUsd(1_000_000)
	dep, err := e.ExecuteDeposit("alice", false, amount, flatSnapshot())
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	wd, err := e.ExecuteWithdrawal("alice", false, dep.SharesMinted, flatSnapshot())
	if err != nil {
		t.Fatalf("withdrawal: %v", err)
	}

	// Burning every share is a 100% withdrawal: base fee plus the full
	// surcharge cap. Exactly two fee deductions, nothing else.
	afterDeposit := fixmath.Sub(amount, fixmath.WadMul(amount, testBaseFee))
	fullFee := fixmath.Add(testBaseFee, testFeeScale)
	want := fixmath.Sub(afterDeposit, fixmath.WadMul(afterDeposit, fullFee))
	if wd.TokensOut.Cmp(want) != 0 {
		t.Errorf("round-trip payout = %s, want %s", wd.TokensOut, want)
	}
	if bank.BalanceOf(false, "alice").Cmp(want) != 0 {
		t.Errorf("alice bank balance = %s, want %s", bank.BalanceOf(false, "alice"), want)
	}
	if e.TotalSupply().Sign() != 0 {
		t.Errorf("supply after full withdrawal = %s, want 0", e.TotalSupply())
	}
	// The pool amount backing shares must be exactly zero: the remaining
	// balance is all fee pot.
	if e.Balance(false).Cmp(e.AccumulatedFees(false)) != 0 {
		t.Errorf("residual balance %s != fee pot %s", e.Balance(false), e.AccumulatedFees(false))
	}
}

func TestDepositFee_SkewSurcharge(t *testing.T) {
	e, bank := newTestVault(t)
	fund(bank, false, "alice", 2_000_000)
	fund(bank, true, "bob", 2_000_000)

	// Seed a short-heavy pool: 1M stable, nothing volatile.
	if _, err := e.ExecuteDeposit("alice", false, fixmath.NewUsd(1_000_000), flatSnapshot()); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	// A long-side deposit reduces |skew| without flipping it: base fee only.
	improving, err := e.ExecuteDeposit("bob", true, fixmath.NewUsd(500_000), flatSnapshot())
	if err != nil {
		t.Fatalf("improving deposit: %v", err)
	}
	if improving.FeeRate.Cmp(testBaseFee) != 0 {
		t.Errorf("improving deposit rate = %s, want base %s", improving.FeeRate, testBaseFee)
	}

	// Another short-side deposit worsens skew: base plus surcharge.
	worsening, err := e.ExecuteDeposit("alice", false, fixmath.NewUsd(500_000), flatSnapshot())
	if err != nil {
		t.Fatalf("worsening deposit: %v", err)
	}
	if worsening.FeeRate.Cmp(testBaseFee) <= 0 {
		t.Errorf("worsening deposit rate = %s, want above base %s", worsening.FeeRate, testBaseFee)
	}
	maxRate := fixmath.Add(testBaseFee, testFeeScale)
	if worsening.FeeRate.Cmp(maxRate) > 0 {
		t.Errorf("worsening deposit rate = %s exceeds cap %s", worsening.FeeRate, maxRate)
	}
}

func TestDepositFee_SignFlipPaysSurcharge(t *testing.T) {
	e, bank := newTestVault(t)
	fund(bank, false, "alice", 1_000_000)
	fund(bank, true, "bob", 1_000_000)

	if _, err := e.ExecuteDeposit("alice", false, fixmath.NewUsd(100_000), flatSnapshot()); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	// A huge long deposit overshoots balance and flips the skew sign.
	res, err := e.ExecuteDeposit("bob", true, fixmath.NewUsd(900_000), flatSnapshot())
	if err != nil {
		t.Fatalf("flipping deposit: %v", err)
	}
	if res.FeeRate.Cmp(testBaseFee) <= 0 {
		t.Errorf("sign-flipping deposit rate = %s, want above base", res.FeeRate)
	}
}

func TestExecuteWithdrawal_InsufficientAvailableTokens(t *testing.T) {
	bank := vault.NewMemoryBank()
	// Unsettled borrow fees carry share value the vault holds no tokens for
	// yet, so a full redemption claims more than the on-hand balance.
	e := vault.NewEngine(testVaultConfig(), bank, &stubBorrowFees{usd: fixmath.NewUsd(500_000)}, &stubPnl{usd: big.NewInt(0)})
	fund(bank, false, "alice", 1_000_000)

	dep, err := e.ExecuteDeposit("alice", false, fixmath.NewUsd(1_000_000), flatSnapshot())
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	supplyBefore := e.TotalSupply()
	_, err = e.ExecuteWithdrawal("alice", false, dep.SharesMinted, flatSnapshot())
	if !errors.Is(err, vault.ErrInsufficientAvailableTokens) {
		t.Fatalf("err = %v, want ErrInsufficientAvailableTokens", err)
	}
	if e.TotalSupply().Cmp(supplyBefore) != 0 {
		t.Errorf("failed withdrawal burned shares: %s -> %s", supplyBefore, e.TotalSupply())
	}
}

func TestExecuteWithdrawal_UnknownOwner(t *testing.T) {
	e, bank := newTestVault(t)
	fund(bank, false, "alice", 1_000)
	if _, err := e.ExecuteDeposit("alice", false, fixmath.NewUsd(1_000), flatSnapshot()); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	_, err := e.ExecuteWithdrawal("mallory", false, fixmath.NewUsd(1), flatSnapshot())
	if !errors.Is(err, vault.ErrInsufficientShares) {
		t.Fatalf("err = %v, want ErrInsufficientShares", err)
	}
}

func TestUpdateReservation(t *testing.T) {
	e, bank := newTestVault(t)
	fund(bank, false, "alice", 1_000)
	if _, err := e.ExecuteDeposit("alice", false, fixmath.NewUsd(1_000), flatSnapshot()); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// Reserving more than the balance fails and leaves state untouched.
	err := e.UpdateReservation("keeper", false, fixmath.NewUsd(2_000))
	if !errors.Is(err, vault.ErrInsufficientLiquidity) {
		t.Fatalf("err = %v, want ErrInsufficientLiquidity", err)
	}
	if e.Reserved(false).Sign() != 0 {
		t.Errorf("failed reservation mutated state: %s", e.Reserved(false))
	}

	if err := e.UpdateReservation("keeper", false, fixmath.NewUsd(600)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if e.Reserved(false).Cmp(fixmath.NewUsd(600)) != 0 {
		t.Errorf("reserved = %s, want 600", e.Reserved(false))
	}
	if e.AvailableTokens(false).Cmp(fixmath.NewUsd(400)) != 0 {
		t.Errorf("available = %s, want 400", e.AvailableTokens(false))
	}

	// Releasing more than the user's own reservation fails.
	err = e.UpdateReservation("keeper", false, fixmath.NewUsd(-700))
	if !errors.Is(err, vault.ErrInsufficientReserves) {
		t.Fatalf("err = %v, want ErrInsufficientReserves", err)
	}

	// A different user has no reservation to release.
	err = e.UpdateReservation("other", false, fixmath.NewUsd(-1))
	if !errors.Is(err, vault.ErrInsufficientReserves) {
		t.Fatalf("err = %v, want ErrInsufficientReserves", err)
	}

	if err := e.UpdateReservation("keeper", false, fixmath.NewUsd(-600)); err != nil {
		t.Fatalf("release: %v", err)
	}
	if e.Reserved(false).Sign() != 0 {
		t.Errorf("reserved after full release = %s, want 0", e.Reserved(false))
	}
}

func TestUpdateCollateral(t *testing.T) {
	e, _ := newTestVault(t)

	if err := e.UpdateCollateral("alice", true, fixmath.NewUsd(500)); err != nil {
		t.Fatalf("add collateral: %v", err)
	}
	if e.CollateralOf("alice", true).Cmp(fixmath.NewUsd(500)) != 0 {
		t.Errorf("collateral = %s, want 500", e.CollateralOf("alice", true))
	}

	err := e.UpdateCollateral("alice", true, fixmath.NewUsd(-600))
	if !errors.Is(err, vault.ErrInsufficientCollateral) {
		t.Fatalf("err = %v, want ErrInsufficientCollateral", err)
	}
	if e.CollateralOf("alice", true).Cmp(fixmath.NewUsd(500)) != 0 {
		t.Errorf("failed release mutated collateral: %s", e.CollateralOf("alice", true))
	}
}

func TestCollectFees(t *testing.T) {
	e, bank := newTestVault(t)
	fund(bank, false, "alice", 1_000_000)
	if _, err := e.ExecuteDeposit("alice", false, fixmath.NewUsd(1_000_000), flatSnapshot()); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	wantFees := e.AccumulatedFees(false)
	got, err := e.CollectFees(false, "treasury")
	if err != nil {
		t.Fatalf("CollectFees: %v", err)
	}
	if got.Cmp(wantFees) != 0 {
		t.Errorf("collected = %s, want %s", got, wantFees)
	}
	if e.AccumulatedFees(false).Sign() != 0 {
		t.Errorf("fee pot after collection = %s, want 0", e.AccumulatedFees(false))
	}
	if bank.BalanceOf(false, "treasury").Cmp(wantFees) != 0 {
		t.Errorf("treasury received %s, want %s", bank.BalanceOf(false, "treasury"), wantFees)
	}

	// Second collection is a no-op.
	got, err = e.CollectFees(false, "treasury")
	if err != nil || got.Sign() != 0 {
		t.Errorf("empty collection = (%s, %v), want (0, nil)", got, err)
	}
}

func TestAum_SubtractsPositivePnlOnly(t *testing.T) {
	bank := vault.NewMemoryBank()
	pnl := &stubPnl{usd: big.NewInt(0)}
	e := vault.NewEngine(testVaultConfig(), bank, &stubBorrowFees{usd: fixmath.NewUsd(10_000)}, pnl)

	fund(bank, false, "alice", 1_000_000)
	if _, err := e.ExecuteDeposit("alice", false, fixmath.NewUsd(1_000_000), flatSnapshot()); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	poolAmount := fixmath.Sub(e.Balance(false), e.AccumulatedFees(false))

	aum, err := e.Aum(flatSnapshot(), true)
	if err != nil {
		t.Fatalf("Aum: %v", err)
	}
	want := fixmath.Add(poolAmount, fixmath.NewUsd(10_000))
	if aum.Cmp(want) != 0 {
		t.Errorf("aum = %s, want pool + borrow fees = %s", aum, want)
	}

	// Positive trader PnL is subtracted.
	pnl.usd = fixmath.NewUsd(50_000)
	aum, _ = e.Aum(flatSnapshot(), true)
	if aum.Cmp(fixmath.Sub(want, fixmath.NewUsd(50_000))) != 0 {
		t.Errorf("aum with trader profit = %s, want %s", aum, fixmath.Sub(want, fixmath.NewUsd(50_000)))
	}

	// Trader losses are not added back.
	pnl.usd = fixmath.NewUsd(-50_000)
	aum, _ = e.Aum(flatSnapshot(), true)
	if aum.Cmp(want) != 0 {
		t.Errorf("aum with trader loss = %s, want unchanged %s", aum, want)
	}
}

func TestAum_ExcludesReservedTokens(t *testing.T) {
	e, bank := newTestVault(t)
	fund(bank, false, "alice", 1_000)
	if _, err := e.ExecuteDeposit("alice", false, fixmath.NewUsd(1_000), flatSnapshot()); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	before, err := e.Aum(flatSnapshot(), true)
	if err != nil {
		t.Fatalf("Aum: %v", err)
	}

	// Reserved tokens back open positions, not shares: AUM drops by the
	// reserved amount.
	if err := e.UpdateReservation("keeper", false, fixmath.NewUsd(600)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	after, err := e.Aum(flatSnapshot(), true)
	if err != nil {
		t.Fatalf("Aum: %v", err)
	}
	want := fixmath.Sub(before, fixmath.NewUsd(600))
	if after.Cmp(want) != 0 {
		t.Errorf("aum with 600 reserved = %s, want %s", after, want)
	}

	if err := e.UpdateReservation("keeper", false, fixmath.NewUsd(-600)); err != nil {
		t.Fatalf("release: %v", err)
	}
	restored, err := e.Aum(flatSnapshot(), true)
	if err != nil {
		t.Fatalf("Aum: %v", err)
	}
	if restored.Cmp(before) != 0 {
		t.Errorf("aum after release = %s, want %s", restored, before)
	}
}

func TestAum_MissingPrice(t *testing.T) {
	e, _ := newTestVault(t)
	snap := &oracle.Snapshot{Prices: map[string]oracle.Price{}}
	if _, err := e.Aum(snap, true); !errors.Is(err, oracle.ErrMissingPrice) {
		t.Fatalf("err = %v, want ErrMissingPrice", err)
	}
}

func TestSharePrice_PriceBoundBias(t *testing.T) {
	e, bank := newTestVault(t)
	fund(bank, false, "alice", 1_000_000)
	if _, err := e.ExecuteDeposit("alice", false, fixmath.NewUsd(1_000_000), flatSnapshot()); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// A spread on the stable token: bid 0.99, ask 1.01.
	spread := &oracle.Snapshot{Prices: map[string]oracle.Price{
		"WETH": {Bid: fixmath.Copy(fixmath.Wad), Ask: fixmath.Copy(fixmath.Wad)},
		"USDC": {Bid: fixmath.PercentOf(fixmath.Wad, 9_900), Ask: fixmath.PercentOf(fixmath.Wad, 10_100)},
	}}

	maxPrice, err := e.SharePrice(spread, true)
	if err != nil {
		t.Fatalf("SharePrice max: %v", err)
	}
	minPrice, err := e.SharePrice(spread, false)
	if err != nil {
		t.Fatalf("SharePrice min: %v", err)
	}
	if maxPrice.Cmp(minPrice) <= 0 {
		t.Errorf("maximized share price %s should exceed minimized %s", maxPrice, minPrice)
	}
}
