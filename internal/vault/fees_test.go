package vault

import (
	"math/big"
	"testing"

	"VaultLedger/internal/fixmath"
)

func feeConfigForTest() FeeConfig {
	return FeeConfig{
		BaseFee:  fixmath.PercentOf(fixmath.Wad, 30),
		FeeScale: fixmath.PercentOf(fixmath.Wad, 100),
	}
}

func TestFeeRate_EmptyPoolChargesBaseOnly(t *testing.T) {
	cfg := feeConfigForTest()
	got := feeRate(cfg, feeInputs{
		skewBefore:      big.NewInt(0),
		skewAfter:       fixmath.NewUsd(1_000_000),
		poolValueBefore: big.NewInt(0),
		amountUsd:       fixmath.NewUsd(1_000_000),
	})
	if got.Cmp(cfg.BaseFee) != 0 {
		t.Errorf("bootstrap rate = %s, want base %s", got, cfg.BaseFee)
	}
}

func TestFeeRate_LandingOnZeroSkewIsImproving(t *testing.T) {
	cfg := feeConfigForTest()
	got := feeRate(cfg, feeInputs{
		skewBefore:      fixmath.NewUsd(-500),
		skewAfter:       big.NewInt(0),
		poolValueBefore: fixmath.NewUsd(10_000),
		amountUsd:       fixmath.NewUsd(500),
	})
	if got.Cmp(cfg.BaseFee) != 0 {
		t.Errorf("rate = %s, want base %s", got, cfg.BaseFee)
	}
}

func TestFeeRate_SurchargeDenominatorAsymmetry(t *testing.T) {
	cfg := feeConfigForTest()
	in := feeInputs{
		skewBefore:      fixmath.NewUsd(1_000),
		skewAfter:       fixmath.NewUsd(3_000),
		poolValueBefore: fixmath.NewUsd(10_000),
		amountUsd:       fixmath.NewUsd(2_000),
	}

	// Deposits divide the post-flow skew by poolValue + amount; withdrawals
	// by poolValue alone, so the same figures price higher on the way out.
	deposit := feeRate(cfg, in)
	in.isWithdrawal = true
	withdrawal := feeRate(cfg, in)

	if deposit.Cmp(withdrawal) >= 0 {
		t.Errorf("deposit rate %s should be below withdrawal rate %s", deposit, withdrawal)
	}

	// 3000/12000 of the 1% scale on top of the 0.3% base.
	wantDeposit := fixmath.Add(cfg.BaseFee, fixmath.PercentOf(cfg.FeeScale, 2_500))
	if deposit.Cmp(wantDeposit) != 0 {
		t.Errorf("deposit rate = %s, want %s", deposit, wantDeposit)
	}
}

func TestFeeRate_FullWithdrawalChargesMax(t *testing.T) {
	cfg := feeConfigForTest()
	got := feeRate(cfg, feeInputs{
		skewBefore:      fixmath.NewUsd(-1_000),
		skewAfter:       big.NewInt(0),
		poolValueBefore: fixmath.NewUsd(10_000),
		amountUsd:       fixmath.NewUsd(10_000),
		isWithdrawal:    true,
	})
	want := fixmath.Add(cfg.BaseFee, cfg.FeeScale)
	if got.Cmp(want) != 0 {
		t.Errorf("full withdrawal rate = %s, want max %s", got, want)
	}
}

func TestFeeRate_SurchargeCapped(t *testing.T) {
	cfg := feeConfigForTest()
	got := feeRate(cfg, feeInputs{
		skewBefore:      fixmath.NewUsd(5_000),
		skewAfter:       fixmath.NewUsd(50_000),
		poolValueBefore: fixmath.NewUsd(1_000),
		amountUsd:       fixmath.NewUsd(45_000),
	})
	want := fixmath.Add(cfg.BaseFee, cfg.FeeScale)
	if got.Cmp(want) != 0 {
		t.Errorf("rate = %s, want capped %s", got, want)
	}
}
