package borrowing

import (
	"math/big"

	"VaultLedger/internal/fixmath"
)

// Borrowing fees charge open positions for the liquidity their exposure
// reserves. Each side carries its own rate, derived from that side's
// utilization of its maximum open interest, and a cumulative percentage
// counter positions are measured against.

// Config carries the per-instrument borrowing parameters.
type Config struct {
	// Factor is the rate at full utilization (wad/day).
	Factor *big.Int

	// Exponent shapes the utilization curve: rate = Factor * util^Exponent.
	Exponent uint

	// FeeForSmallerSide charges the side with less open interest instead of
	// the larger one. A policy toggle, not a bug.
	FeeForSmallerSide bool
}

// Side is the stored borrowing state for one side of an instrument.
type Side struct {
	Rate       *big.Int // wad/day, never negative
	Cumulative *big.Int // running cumulative fee percentage, wad
	LastUpdate int64
}

// Result is the post-update state for one side.
type Result struct {
	Rate       *big.Int
	Cumulative *big.Int
}

// Update accrues the cumulative counter with the rate in force before the
// interval (rectangular, same policy as funding), then recomputes the rate
// from post-trade utilization. charged is false for the side the
// FeeForSmallerSide policy exempts; an uncharged side keeps a zero rate but
// its cumulative never decreases.
func Update(cfg Config, st Side, sideOiUsd, maxSideOiUsd *big.Int, charged bool, now int64) Result {
	elapsed := now - st.LastUpdate
	if elapsed < 0 {
		elapsed = 0
	}

	cumulative := fixmath.Add(st.Cumulative, fixmath.PerInterval(st.Rate, elapsed))

	rate := big.NewInt(0)
	if charged {
		rate = rateFromUtilization(cfg, sideOiUsd, maxSideOiUsd)
	}

	return Result{Rate: rate, Cumulative: cumulative}
}

// ChargedSides resolves the FeeForSmallerSide policy into per-side flags.
// Ties charge both sides.
func ChargedSides(cfg Config, longOiUsd, shortOiUsd *big.Int) (chargeLong, chargeShort bool) {
	cmp := longOiUsd.Cmp(shortOiUsd)
	if cmp == 0 {
		return true, true
	}
	longIsLarger := cmp > 0
	if cfg.FeeForSmallerSide {
		return !longIsLarger, longIsLarger
	}
	return longIsLarger, !longIsLarger
}

// rateFromUtilization computes Factor * (oi/maxOi)^Exponent with utilization
// capped at 100%.
func rateFromUtilization(cfg Config, oiUsd, maxOiUsd *big.Int) *big.Int {
	if maxOiUsd.Sign() <= 0 {
		if oiUsd.Sign() > 0 {
			// No capacity but open exposure: charge the full factor.
			return fixmath.Copy(cfg.Factor)
		}
		return big.NewInt(0)
	}

	util, err := fixmath.WadDiv(oiUsd, maxOiUsd)
	if err != nil {
		return big.NewInt(0)
	}
	util = fixmath.Clamp(util, big.NewInt(0), fixmath.Wad)

	return fixmath.WadMul(cfg.Factor, fixmath.ExpWad(util, cfg.Exponent))
}

// NextAverageCumulative recomputes the size-weighted average entry
// cumulative after an open-interest change. New size entering at the current
// cumulative shifts the average so that any position's owed fee stays
// (currentCumulative - entryCumulative) * size.
//
// Decreases leave the average untouched unless the side fully closes, which
// resets it to zero.
func NextAverageCumulative(prevAverage, prevSizeUsd, currentCumulative, sizeDeltaUsd *big.Int, isIncrease bool) *big.Int {
	if !isIncrease {
		remaining := fixmath.Sub(prevSizeUsd, sizeDeltaUsd)
		if remaining.Sign() <= 0 {
			return big.NewInt(0)
		}
		return fixmath.Copy(prevAverage)
	}

	newSize := fixmath.Add(prevSizeUsd, sizeDeltaUsd)
	if newSize.Sign() == 0 {
		return big.NewInt(0)
	}

	weighted := fixmath.Add(
		new(big.Int).Mul(prevAverage, prevSizeUsd),
		new(big.Int).Mul(currentCumulative, sizeDeltaUsd),
	)
	return weighted.Quo(weighted, newSize)
}

// PendingFeesUsd returns the fees accrued but not yet settled for one side:
// (cumulative - weighted average entry cumulative) * open interest.
func PendingFeesUsd(cumulative, averageEntryCumulative, sideOiUsd *big.Int) *big.Int {
	owedRate := fixmath.Sub(cumulative, averageEntryCumulative)
	if owedRate.Sign() <= 0 {
		return big.NewInt(0)
	}
	return fixmath.WadMul(owedRate, sideOiUsd)
}
