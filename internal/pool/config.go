package pool

import (
	"fmt"
	"math/big"

	"VaultLedger/internal/fixmath"
)

// Config is the per-instrument risk parameter set. It only changes through
// the market-admin entry points; every trade-path read sees a consistent
// copy.
type Config struct {
	Ticker string

	// MaxLeverageBps bounds position leverage (100x == 1_000_000 bps).
	MaxLeverageBps int64

	// MaintenanceMarginBps is the maintenance margin fraction.
	MaintenanceMarginBps int64

	// ReserveFactorBps is the share of allocated liquidity held back from
	// open interest capacity.
	ReserveFactorBps int64

	// Funding parameters, wad/day and wad USD.
	MaxFundingVelocity *big.Int
	MaxFundingRate     *big.Int
	SkewScale          *big.Int
	FundingDeadZoneUsd *big.Int

	// Borrowing parameters.
	BorrowingFactor   *big.Int // wad/day at full utilization
	BorrowingExponent uint
	FeeForSmallerSide bool

	// Price-impact scalars, basis points. The negative scalar of each pair
	// must dominate so impact always favors the pool.
	PositiveSkewScalarBps      int64
	NegativeSkewScalarBps      int64
	PositiveLiquidityScalarBps int64
	NegativeLiquidityScalarBps int64
}

const (
	minLeverageBps = fixmath.BasisPoints       // 1x
	maxLeverageBps = 100 * fixmath.BasisPoints // 100x
)

// Validate rejects malformed configs before they reach instrument storage.
func (c *Config) Validate() error {
	if c.Ticker == "" {
		return fmt.Errorf("pool config: empty ticker")
	}
	if c.MaxLeverageBps < minLeverageBps || c.MaxLeverageBps > maxLeverageBps {
		return fmt.Errorf("pool config %s: max leverage %d bps outside [%d, %d]",
			c.Ticker, c.MaxLeverageBps, minLeverageBps, maxLeverageBps)
	}
	if c.MaintenanceMarginBps <= 0 || c.MaintenanceMarginBps >= fixmath.BasisPoints {
		return fmt.Errorf("pool config %s: maintenance margin %d bps outside (0, %d)",
			c.Ticker, c.MaintenanceMarginBps, fixmath.BasisPoints)
	}
	if c.ReserveFactorBps < 0 || c.ReserveFactorBps >= fixmath.BasisPoints {
		return fmt.Errorf("pool config %s: reserve factor %d bps outside [0, %d)",
			c.Ticker, c.ReserveFactorBps, fixmath.BasisPoints)
	}
	if c.MaxFundingVelocity == nil || c.MaxFundingVelocity.Sign() <= 0 {
		return fmt.Errorf("pool config %s: max funding velocity must be positive", c.Ticker)
	}
	if c.MaxFundingRate == nil || c.MaxFundingRate.Sign() <= 0 {
		return fmt.Errorf("pool config %s: max funding rate must be positive", c.Ticker)
	}
	if c.SkewScale == nil || c.SkewScale.Sign() <= 0 {
		return fmt.Errorf("pool config %s: skew scale must be positive", c.Ticker)
	}
	if c.FundingDeadZoneUsd == nil || c.FundingDeadZoneUsd.Sign() < 0 {
		return fmt.Errorf("pool config %s: funding dead-zone must be non-negative", c.Ticker)
	}
	if c.BorrowingFactor == nil || c.BorrowingFactor.Sign() < 0 {
		return fmt.Errorf("pool config %s: borrowing factor must be non-negative", c.Ticker)
	}
	if err := validateScalarPair(c.Ticker, "skew", c.PositiveSkewScalarBps, c.NegativeSkewScalarBps); err != nil {
		return err
	}
	return validateScalarPair(c.Ticker, "liquidity", c.PositiveLiquidityScalarBps, c.NegativeLiquidityScalarBps)
}

func validateScalarPair(ticker, name string, positive, negative int64) error {
	if positive < 0 || positive > fixmath.BasisPoints {
		return fmt.Errorf("pool config %s: positive %s scalar %d bps outside [0, %d]",
			ticker, name, positive, fixmath.BasisPoints)
	}
	if negative < 0 || negative > fixmath.BasisPoints {
		return fmt.Errorf("pool config %s: negative %s scalar %d bps outside [0, %d]",
			ticker, name, negative, fixmath.BasisPoints)
	}
	if negative < positive {
		return fmt.Errorf("pool config %s: negative %s scalar %d bps must be >= positive %d bps",
			ticker, name, negative, positive)
	}
	return nil
}

// clone returns a deep copy so stored configs never alias caller values.
func (c *Config) clone() Config {
	out := *c
	out.MaxFundingVelocity = fixmath.Copy(c.MaxFundingVelocity)
	out.MaxFundingRate = fixmath.Copy(c.MaxFundingRate)
	out.SkewScale = fixmath.Copy(c.SkewScale)
	out.FundingDeadZoneUsd = fixmath.Copy(c.FundingDeadZoneUsd)
	out.BorrowingFactor = fixmath.Copy(c.BorrowingFactor)
	return out
}
