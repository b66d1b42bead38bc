package vault

import (
	"math/big"

	"VaultLedger/internal/fixmath"
)

// Liquidity fees have two parts: a flat base fee and a skew surcharge that
// prices how the flow moves the balance between the two collateral sides.
// Flows that reduce |skew| without flipping its sign pay base only; flows
// that worsen or flip it pay a surcharge proportional to the post-flow
// skew's share of pool value, capped at FeeScale.

// FeeConfig carries the liquidity-fee parameters, wad rates.
type FeeConfig struct {
	BaseFee  *big.Int // flat rate on every deposit and withdrawal
	FeeScale *big.Int // surcharge cap
}

// feeInputs are the USD figures the surcharge decision reads. All values are
// computed by the engine under one price snapshot before any mutation.
type feeInputs struct {
	skewBefore      *big.Int
	skewAfter       *big.Int
	poolValueBefore *big.Int
	amountUsd       *big.Int
	isWithdrawal    bool
}

// feeRate resolves the total fee rate (wad) for one liquidity flow.
//
// The surcharge denominator differs between the two paths: deposits divide
// by poolValueBefore + amount, withdrawals by poolValueBefore alone. The
// asymmetry is part of the settled-fee contract; do not unify the formulas.
func feeRate(cfg FeeConfig, in feeInputs) *big.Int {
	if in.poolValueBefore.Sign() == 0 {
		// Bootstrap flow into an empty pool: no skew to price.
		return fixmath.Copy(cfg.BaseFee)
	}

	if in.isWithdrawal && in.amountUsd.Cmp(in.poolValueBefore) >= 0 {
		// Draining the whole pool pays the maximum possible fee.
		return fixmath.Add(cfg.BaseFee, cfg.FeeScale)
	}

	if improvesBalance(in.skewBefore, in.skewAfter) {
		return fixmath.Copy(cfg.BaseFee)
	}

	denom := in.poolValueBefore
	if !in.isWithdrawal {
		denom = fixmath.Add(in.poolValueBefore, in.amountUsd)
	}

	share, err := fixmath.WadDiv(fixmath.Abs(in.skewAfter), denom)
	if err != nil {
		return fixmath.Add(cfg.BaseFee, cfg.FeeScale)
	}

	surcharge := fixmath.Min(cfg.FeeScale, fixmath.WadMul(cfg.FeeScale, share))
	return fixmath.Add(cfg.BaseFee, surcharge)
}

// improvesBalance reports whether the flow shrinks |skew| without flipping
// its sign. Landing exactly on zero counts as improving.
func improvesBalance(before, after *big.Int) bool {
	if after.Sign() == 0 {
		return true
	}
	if before.Sign() != 0 && after.Sign() != before.Sign() {
		return false
	}
	return fixmath.Abs(after).Cmp(fixmath.Abs(before)) < 0
}
