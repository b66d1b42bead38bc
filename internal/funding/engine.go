package funding

import (
	"math/big"

	"VaultLedger/internal/fixmath"
)

// Funding transfers value between the long and short sides of an instrument
// in proportion to skew. The engine is a pure function of validated inputs:
// the pool state engine feeds it the pre-trade open interest and owns the
// resulting state.

// Config carries the per-instrument funding parameters.
type Config struct {
	// SkewScale normalizes raw USD skew into a proportional skew.
	SkewScale *big.Int

	// MaxVelocity bounds the per-day change of the funding rate (wad/day).
	MaxVelocity *big.Int

	// MaxRate bounds the funding rate itself (wad/day).
	MaxRate *big.Int

	// DeadZoneUsd is the skew band treated as perfectly balanced: inside it
	// velocity is zero and no new funding pressure builds.
	DeadZoneUsd *big.Int
}

// State is the stored funding state an update starts from.
type State struct {
	Rate       *big.Int // signed, wad/day
	Velocity   *big.Int // signed, wad/day
	LastUpdate int64    // unix seconds
}

// Result is the post-update funding state plus the USD settled over the
// elapsed interval.
type Result struct {
	Rate     *big.Int
	Velocity *big.Int

	// AccruedUsd is the funding settled over the interval, positive when the
	// heavier side pays the lighter side.
	AccruedUsd *big.Int
}

// Update advances funding to now given the pre-trade open interest.
//
// Accrual is rectangular: the rate in force before the interval integrates
// over the whole interval. The settled amounts depend on this exact method;
// do not switch to a trapezoidal average.
func Update(cfg Config, st State, longOiUsd, shortOiUsd *big.Int, now int64) Result {
	elapsed := now - st.LastUpdate
	if elapsed < 0 {
		elapsed = 0
	}

	totalOi := fixmath.Add(longOiUsd, shortOiUsd)
	accrued := fixmath.WadMul(fixmath.PerInterval(st.Rate, elapsed), totalOi)

	skew := fixmath.Sub(longOiUsd, shortOiUsd)
	velocity := velocityFromSkew(cfg, skew)

	rate := fixmath.Add(st.Rate, fixmath.PerInterval(velocity, elapsed))
	rate = fixmath.ClampAbs(rate, cfg.MaxRate)

	return Result{
		Rate:       rate,
		Velocity:   velocity,
		AccruedUsd: accrued,
	}
}

// velocityFromSkew maps USD skew to a rate velocity: proportional to
// skew / skewScale, scaled by MaxVelocity, clamped to +-MaxVelocity, and
// zero inside the dead-zone.
func velocityFromSkew(cfg Config, skew *big.Int) *big.Int {
	if fixmath.Abs(skew).Cmp(cfg.DeadZoneUsd) < 0 {
		return big.NewInt(0)
	}

	proportional, err := fixmath.WadDiv(skew, cfg.SkewScale)
	if err != nil {
		// Zero skew scale is rejected at config validation; treat as no pressure.
		return big.NewInt(0)
	}

	velocity := fixmath.WadMul(proportional, cfg.MaxVelocity)
	return fixmath.ClampAbs(velocity, cfg.MaxVelocity)
}
