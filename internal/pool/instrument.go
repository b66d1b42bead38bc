package pool

import (
	"math/big"

	"VaultLedger/internal/fixmath"
)

// Cumulatives are the per-instrument running counters positions settle
// against: size-weighted average entry prices and the borrow-fee baselines.
type Cumulatives struct {
	LongAvgEntryPriceUsd  *big.Int
	ShortAvgEntryPriceUsd *big.Int

	LongBorrowFee  *big.Int // cumulative fee percentage, wad
	ShortBorrowFee *big.Int

	// Size-weighted average cumulative at entry, per side. A position's owed
	// fee is (current cumulative - this baseline) * its size.
	WeightedAvgLongCumulative  *big.Int
	WeightedAvgShortCumulative *big.Int
}

// Instrument is the full per-asset pool record. Owned exclusively by the
// Engine; all mutation goes through Engine entry points so the ordered
// update protocol holds.
type Instrument struct {
	Config      Config
	Cumulatives Cumulatives

	// Open interest per side, USD wad. Never negative.
	LongOpenInterestUsd  *big.Int
	ShortOpenInterestUsd *big.Int

	FundingRate         *big.Int // signed, wad/day
	FundingRateVelocity *big.Int // signed, wad/day

	LongBorrowingRate  *big.Int // wad/day
	ShortBorrowingRate *big.Int

	// LastUpdate advances monotonically with every state mutation.
	LastUpdate int64

	// AllocationWeight is this instrument's share of market liquidity in
	// basis points of allocation.Total.
	AllocationWeight uint16

	// FundingAccruedUsd is the signed cumulative funding settled through
	// this instrument.
	FundingAccruedUsd *big.Int

	// ImpactPoolUsd absorbs negative price impact and funds positive impact
	// payouts. Never negative; decreases clamp at zero.
	ImpactPoolUsd *big.Int
}

func newInstrument(cfg Config, weight uint16, now int64) *Instrument {
	return &Instrument{
		Config: cfg.clone(),
		Cumulatives: Cumulatives{
			LongAvgEntryPriceUsd:       big.NewInt(0),
			ShortAvgEntryPriceUsd:      big.NewInt(0),
			LongBorrowFee:              big.NewInt(0),
			ShortBorrowFee:             big.NewInt(0),
			WeightedAvgLongCumulative:  big.NewInt(0),
			WeightedAvgShortCumulative: big.NewInt(0),
		},
		LongOpenInterestUsd:  big.NewInt(0),
		ShortOpenInterestUsd: big.NewInt(0),
		FundingRate:          big.NewInt(0),
		FundingRateVelocity:  big.NewInt(0),
		LongBorrowingRate:    big.NewInt(0),
		ShortBorrowingRate:   big.NewInt(0),
		LastUpdate:           now,
		AllocationWeight:     weight,
		FundingAccruedUsd:    big.NewInt(0),
		ImpactPoolUsd:        big.NewInt(0),
	}
}

// OpenInterestUsd returns one side's open interest.
func (in *Instrument) OpenInterestUsd(isLong bool) *big.Int {
	if isLong {
		return fixmath.Copy(in.LongOpenInterestUsd)
	}
	return fixmath.Copy(in.ShortOpenInterestUsd)
}

// SkewUsd is long minus short open interest.
func (in *Instrument) SkewUsd() *big.Int {
	return fixmath.Sub(in.LongOpenInterestUsd, in.ShortOpenInterestUsd)
}

// snapshot returns a deep copy for read paths and projections.
func (in *Instrument) snapshot() *Instrument {
	out := &Instrument{
		Config: in.Config.clone(),
		Cumulatives: Cumulatives{
			LongAvgEntryPriceUsd:       fixmath.Copy(in.Cumulatives.LongAvgEntryPriceUsd),
			ShortAvgEntryPriceUsd:      fixmath.Copy(in.Cumulatives.ShortAvgEntryPriceUsd),
			LongBorrowFee:              fixmath.Copy(in.Cumulatives.LongBorrowFee),
			ShortBorrowFee:             fixmath.Copy(in.Cumulatives.ShortBorrowFee),
			WeightedAvgLongCumulative:  fixmath.Copy(in.Cumulatives.WeightedAvgLongCumulative),
			WeightedAvgShortCumulative: fixmath.Copy(in.Cumulatives.WeightedAvgShortCumulative),
		},
		LongOpenInterestUsd:  fixmath.Copy(in.LongOpenInterestUsd),
		ShortOpenInterestUsd: fixmath.Copy(in.ShortOpenInterestUsd),
		FundingRate:          fixmath.Copy(in.FundingRate),
		FundingRateVelocity:  fixmath.Copy(in.FundingRateVelocity),
		LongBorrowingRate:    fixmath.Copy(in.LongBorrowingRate),
		ShortBorrowingRate:   fixmath.Copy(in.ShortBorrowingRate),
		LastUpdate:           in.LastUpdate,
		AllocationWeight:     in.AllocationWeight,
		FundingAccruedUsd:    fixmath.Copy(in.FundingAccruedUsd),
		ImpactPoolUsd:        fixmath.Copy(in.ImpactPoolUsd),
	}
	return out
}
