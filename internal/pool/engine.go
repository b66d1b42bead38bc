package pool

import (
	"errors"
	"fmt"
	"math/big"

	"VaultLedger/internal/allocation"
	"VaultLedger/internal/borrowing"
	"VaultLedger/internal/fixmath"
	"VaultLedger/internal/funding"
	"VaultLedger/internal/oracle"
)

// MaxInstruments caps the instrument count per market, which bounds the
// O(instrument) reallocation and fee-aggregation paths.
const MaxInstruments = 10

var (
	ErrInvalidTicker         = errors.New("pool: ticker is not a member of the market")
	ErrInstrumentExists      = errors.New("pool: instrument already present")
	ErrMaxInstruments        = errors.New("pool: market is at maximum instrument count")
	ErrLastInstrument        = errors.New("pool: cannot remove the last instrument")
	ErrInvalidAllocation     = errors.New("pool: new allocation below current open interest")
	ErrInvalidIndexPrice     = errors.New("pool: index price must be positive")
	ErrOpenInterestUnderflow = errors.New("pool: decrease exceeds open interest")
	ErrWeightCountMismatch   = errors.New("pool: weight count does not match instrument count")
)

// LiquidityProvider is the vault boundary the allocation step reads.
// Available liquidity is balance minus reserved per collateral side.
type LiquidityProvider interface {
	AvailableTokens(isLong bool) *big.Int
	AvailableUsd(isLong bool, snap *oracle.Snapshot) (*big.Int, error)
}

// StateChange is the notification emitted after every state mutation.
type StateChange struct {
	Market    string
	Ticker    string
	Timestamp int64
}

// TradeParams describes one trade event against an instrument.
// SizeDeltaUsd is an unsigned magnitude; IsIncrease selects direction.
type TradeParams struct {
	Ticker             string
	SizeDeltaUsd       *big.Int
	IndexPrice         *big.Int
	ImpactedPrice      *big.Int
	CollateralPrice    *big.Int
	CollateralBaseUnit *big.Int
	IsLong             bool
	IsIncrease         bool
	Now                int64
}

// Engine owns all per-instrument state for one market and sequences every
// mutation: funding first (pre-trade skew), then weighted-average entry and
// open interest, then borrowing (post-trade utilization). The ordering is
// load-bearing; reversing it feeds the wrong skew and utilization into the
// fee accounting.
//
// Not safe for concurrent mutation. The market core serializes all
// state-changing calls; read paths return detached copies.
type Engine struct {
	market      string
	instruments map[string]*Instrument
	order       []string
	liquidity   LiquidityProvider
	onChange    func(StateChange)
}

func NewEngine(market string) *Engine {
	return &Engine{
		market:      market,
		instruments: make(map[string]*Instrument),
	}
}

// SetLiquidityProvider wires the vault in. Must be called before any
// allocation-dependent operation.
func (e *Engine) SetLiquidityProvider(lp LiquidityProvider) {
	e.liquidity = lp
}

// OnStateChange registers the state-changed notification hook.
func (e *Engine) OnStateChange(fn func(StateChange)) {
	e.onChange = fn
}

// Market returns the market identifier.
func (e *Engine) Market() string {
	return e.market
}

// Tickers returns the instruments in market order.
func (e *Engine) Tickers() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Instrument returns a detached copy of one instrument's state.
func (e *Engine) Instrument(ticker string) (*Instrument, bool) {
	in, ok := e.instruments[ticker]
	if !ok {
		return nil, false
	}
	return in.snapshot(), true
}

// Weights returns the allocation weights in market order.
func (e *Engine) Weights() []uint16 {
	out := make([]uint16, len(e.order))
	for i, ticker := range e.order {
		out[i] = e.instruments[ticker].AllocationWeight
	}
	return out
}

// UpdateState applies one trade event to an instrument, running the ordered
// update protocol. All validation happens before any mutation; a returned
// error means state is untouched.
func (e *Engine) UpdateState(p TradeParams) error {
	in, ok := e.instruments[p.Ticker]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTicker, p.Ticker)
	}
	if p.IndexPrice == nil || p.IndexPrice.Sign() <= 0 {
		return ErrInvalidIndexPrice
	}

	sizeDelta := big.NewInt(0)
	if p.SizeDeltaUsd != nil {
		sizeDelta = fixmath.Copy(p.SizeDeltaUsd)
	}
	if sizeDelta.Sign() < 0 {
		return fmt.Errorf("pool: size delta must be an unsigned magnitude, got %s", sizeDelta)
	}
	if sizeDelta.Sign() != 0 {
		if p.ImpactedPrice == nil || p.ImpactedPrice.Sign() <= 0 {
			return fmt.Errorf("pool: impacted price must be positive for size changes")
		}
		if !p.IsIncrease && sizeDelta.Cmp(in.OpenInterestUsd(p.IsLong)) > 0 {
			return fmt.Errorf("%w: ticker=%s isLong=%v delta=%s oi=%s",
				ErrOpenInterestUnderflow, p.Ticker, p.IsLong, sizeDelta, in.OpenInterestUsd(p.IsLong))
		}
	}
	if p.CollateralPrice == nil || p.CollateralPrice.Sign() <= 0 ||
		p.CollateralBaseUnit == nil || p.CollateralBaseUnit.Sign() <= 0 {
		return fmt.Errorf("pool: collateral price and base unit must be positive")
	}

	// 1. Funding on the pre-trade skew.
	fres := funding.Update(
		funding.Config{
			SkewScale:   in.Config.SkewScale,
			MaxVelocity: in.Config.MaxFundingVelocity,
			MaxRate:     in.Config.MaxFundingRate,
			DeadZoneUsd: in.Config.FundingDeadZoneUsd,
		},
		funding.State{Rate: in.FundingRate, Velocity: in.FundingRateVelocity, LastUpdate: in.LastUpdate},
		in.LongOpenInterestUsd, in.ShortOpenInterestUsd,
		p.Now,
	)
	in.FundingRate = fres.Rate
	in.FundingRateVelocity = fres.Velocity
	in.FundingAccruedUsd = fixmath.Add(in.FundingAccruedUsd, fres.AccruedUsd)

	// 2. Weighted-average entry price, then open interest.
	prevSize := in.OpenInterestUsd(p.IsLong)
	if sizeDelta.Sign() != 0 {
		e.applySizeChange(in, p, prevSize, sizeDelta)
	}

	// 3. Borrowing on the post-trade open interest for the affected side.
	e.updateBorrowingSide(in, p, prevSize, sizeDelta)

	// 4. Monotone timestamp advance + notification.
	if p.Now > in.LastUpdate {
		in.LastUpdate = p.Now
	}
	e.notify(p.Ticker, in.LastUpdate)
	return nil
}

func (e *Engine) applySizeChange(in *Instrument, p TradeParams, prevSize, sizeDelta *big.Int) {
	avg := in.Cumulatives.LongAvgEntryPriceUsd
	if !p.IsLong {
		avg = in.Cumulatives.ShortAvgEntryPriceUsd
	}

	var newAvg *big.Int
	if p.IsIncrease {
		newSize := fixmath.Add(prevSize, sizeDelta)
		weighted := fixmath.Add(
			new(big.Int).Mul(avg, prevSize),
			new(big.Int).Mul(p.ImpactedPrice, sizeDelta),
		)
		newAvg = weighted.Quo(weighted, newSize)
	} else if fixmath.Sub(prevSize, sizeDelta).Sign() == 0 {
		// Full close resets the average.
		newAvg = big.NewInt(0)
	} else {
		newAvg = fixmath.Copy(avg)
	}

	if p.IsLong {
		in.Cumulatives.LongAvgEntryPriceUsd = newAvg
		if p.IsIncrease {
			in.LongOpenInterestUsd = fixmath.Add(in.LongOpenInterestUsd, sizeDelta)
		} else {
			in.LongOpenInterestUsd = fixmath.Sub(in.LongOpenInterestUsd, sizeDelta)
		}
	} else {
		in.Cumulatives.ShortAvgEntryPriceUsd = newAvg
		if p.IsIncrease {
			in.ShortOpenInterestUsd = fixmath.Add(in.ShortOpenInterestUsd, sizeDelta)
		} else {
			in.ShortOpenInterestUsd = fixmath.Sub(in.ShortOpenInterestUsd, sizeDelta)
		}
	}
}

func (e *Engine) updateBorrowingSide(in *Instrument, p TradeParams, prevSize, sizeDelta *big.Int) {
	cfg := borrowing.Config{
		Factor:            in.Config.BorrowingFactor,
		Exponent:          in.Config.BorrowingExponent,
		FeeForSmallerSide: in.Config.FeeForSmallerSide,
	}

	maxOi := e.maxOpenInterestUsdFromTokens(in, p.IsLong, p.CollateralPrice, p.CollateralBaseUnit)
	chargeLong, chargeShort := borrowing.ChargedSides(cfg, in.LongOpenInterestUsd, in.ShortOpenInterestUsd)

	if p.IsLong {
		res := borrowing.Update(cfg,
			borrowing.Side{Rate: in.LongBorrowingRate, Cumulative: in.Cumulatives.LongBorrowFee, LastUpdate: in.LastUpdate},
			in.LongOpenInterestUsd, maxOi, chargeLong, p.Now)
		in.LongBorrowingRate = res.Rate
		in.Cumulatives.LongBorrowFee = res.Cumulative
		if sizeDelta.Sign() != 0 {
			in.Cumulatives.WeightedAvgLongCumulative = borrowing.NextAverageCumulative(
				in.Cumulatives.WeightedAvgLongCumulative, prevSize, res.Cumulative, sizeDelta, p.IsIncrease)
		}
	} else {
		res := borrowing.Update(cfg,
			borrowing.Side{Rate: in.ShortBorrowingRate, Cumulative: in.Cumulatives.ShortBorrowFee, LastUpdate: in.LastUpdate},
			in.ShortOpenInterestUsd, maxOi, chargeShort, p.Now)
		in.ShortBorrowingRate = res.Rate
		in.Cumulatives.ShortBorrowFee = res.Cumulative
		if sizeDelta.Sign() != 0 {
			in.Cumulatives.WeightedAvgShortCumulative = borrowing.NextAverageCumulative(
				in.Cumulatives.WeightedAvgShortCumulative, prevSize, res.Cumulative, sizeDelta, p.IsIncrease)
		}
	}
}

// maxOpenInterestUsdFromTokens sizes one side's open-interest cap from the
// vault's available tokens at the supplied collateral price:
// available * weight/total * (1 - reserveFactor).
func (e *Engine) maxOpenInterestUsdFromTokens(in *Instrument, isLong bool, collateralPrice, baseUnit *big.Int) *big.Int {
	if e.liquidity == nil {
		return big.NewInt(0)
	}
	availUsd, err := fixmath.UsdFromTokens(e.liquidity.AvailableTokens(isLong), collateralPrice, baseUnit)
	if err != nil {
		return big.NewInt(0)
	}
	return e.capacityFromAvailable(in, availUsd)
}

func (e *Engine) capacityFromAvailable(in *Instrument, availUsd *big.Int) *big.Int {
	allocated := fixmath.PercentOf(availUsd, int64(in.AllocationWeight))
	return fixmath.PercentOf(allocated, fixmath.BasisPoints-in.Config.ReserveFactorBps)
}

// Reallocate applies a new weight vector, in market-instrument order.
// The weights must sum to the allocation total, and no instrument may end
// up with less capacity than its current open interest on either side.
// Fails atomically: either every weight is applied or none.
func (e *Engine) Reallocate(weights []uint16, snap *oracle.Snapshot, now int64) error {
	if len(weights) != len(e.order) {
		return fmt.Errorf("%w: got %d weights for %d instruments", ErrWeightCountMismatch, len(weights), len(e.order))
	}
	if err := allocation.ValidateTotal(weights); err != nil {
		return err
	}

	longAvail, err := e.liquidity.AvailableUsd(true, snap)
	if err != nil {
		return fmt.Errorf("pool: price long collateral: %w", err)
	}
	shortAvail, err := e.liquidity.AvailableUsd(false, snap)
	if err != nil {
		return fmt.Errorf("pool: price short collateral: %w", err)
	}

	for i, ticker := range e.order {
		in := e.instruments[ticker]
		probe := Instrument{Config: in.Config, AllocationWeight: weights[i]}

		maxLong := e.capacityFromAvailable(&probe, longAvail)
		if maxLong.Cmp(in.LongOpenInterestUsd) < 0 {
			return fmt.Errorf("%w: %s long oi=%s capacity=%s", ErrInvalidAllocation, ticker, in.LongOpenInterestUsd, maxLong)
		}
		maxShort := e.capacityFromAvailable(&probe, shortAvail)
		if maxShort.Cmp(in.ShortOpenInterestUsd) < 0 {
			return fmt.Errorf("%w: %s short oi=%s capacity=%s", ErrInvalidAllocation, ticker, in.ShortOpenInterestUsd, maxShort)
		}
	}

	for i, ticker := range e.order {
		in := e.instruments[ticker]
		in.AllocationWeight = weights[i]
		if now > in.LastUpdate {
			in.LastUpdate = now
		}
	}

	e.assertAllocationTotal()
	e.notify("", now)
	return nil
}

// AddInstrument registers a new instrument and applies the accompanying
// weight vector (which must cover the enlarged market).
func (e *Engine) AddInstrument(cfg Config, weights []uint16, snap *oracle.Snapshot, now int64) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, exists := e.instruments[cfg.Ticker]; exists {
		return fmt.Errorf("%w: %s", ErrInstrumentExists, cfg.Ticker)
	}
	if len(e.order) >= MaxInstruments {
		return fmt.Errorf("%w: %d", ErrMaxInstruments, MaxInstruments)
	}

	e.instruments[cfg.Ticker] = newInstrument(cfg, 0, now)
	e.order = append(e.order, cfg.Ticker)

	if err := e.Reallocate(weights, snap, now); err != nil {
		// Roll the add back; the market keeps its previous shape.
		delete(e.instruments, cfg.Ticker)
		e.order = e.order[:len(e.order)-1]
		return err
	}
	return nil
}

// RemoveInstrument clears an instrument's storage and reallocates the
// remaining instruments. The last instrument of a market cannot be removed.
func (e *Engine) RemoveInstrument(ticker string, weights []uint16, snap *oracle.Snapshot, now int64) error {
	in, ok := e.instruments[ticker]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTicker, ticker)
	}
	if len(e.order) <= 1 {
		return ErrLastInstrument
	}

	idx := -1
	for i, t := range e.order {
		if t == ticker {
			idx = i
			break
		}
	}

	removedWeight := in.AllocationWeight
	delete(e.instruments, ticker)
	e.order = append(e.order[:idx], e.order[idx+1:]...)

	if err := e.Reallocate(weights, snap, now); err != nil {
		// Restore the instrument; removal is atomic.
		e.instruments[ticker] = in
		e.order = append(e.order, "")
		copy(e.order[idx+1:], e.order[idx:len(e.order)-1])
		e.order[idx] = ticker
		in.AllocationWeight = removedWeight
		return err
	}
	return nil
}

// ApplyImpact moves USD into (positive) or out of (negative) the impact
// pool. The pool never goes negative; over-large decreases clamp at zero.
func (e *Engine) ApplyImpact(ticker string, deltaUsd *big.Int, now int64) error {
	in, ok := e.instruments[ticker]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTicker, ticker)
	}

	next := fixmath.Add(in.ImpactPoolUsd, deltaUsd)
	if next.Sign() < 0 {
		next = big.NewInt(0)
	}
	in.ImpactPoolUsd = next
	if now > in.LastUpdate {
		in.LastUpdate = now
	}
	e.notify(ticker, in.LastUpdate)
	return nil
}

// PendingBorrowFeesUsd totals accrued-but-unsettled borrow fees across all
// instruments and both sides. Feeds the vault's AUM.
func (e *Engine) PendingBorrowFeesUsd() *big.Int {
	total := big.NewInt(0)
	for _, ticker := range e.order {
		in := e.instruments[ticker]
		total = fixmath.Add(total, borrowing.PendingFeesUsd(
			in.Cumulatives.LongBorrowFee, in.Cumulatives.WeightedAvgLongCumulative, in.LongOpenInterestUsd))
		total = fixmath.Add(total, borrowing.PendingFeesUsd(
			in.Cumulatives.ShortBorrowFee, in.Cumulatives.WeightedAvgShortCumulative, in.ShortOpenInterestUsd))
	}
	return total
}

// ExportInstruments returns deep copies of every instrument in market
// order, for snapshots and projections.
func (e *Engine) ExportInstruments() []*Instrument {
	out := make([]*Instrument, 0, len(e.order))
	for _, ticker := range e.order {
		out = append(out, e.instruments[ticker].snapshot())
	}
	return out
}

// RestoreInstruments replaces the engine's state with the given instruments,
// preserving their slice order as market order. Used on warm restart before
// event replay.
func (e *Engine) RestoreInstruments(ins []*Instrument) {
	e.instruments = make(map[string]*Instrument, len(ins))
	e.order = e.order[:0]
	for _, in := range ins {
		e.instruments[in.Config.Ticker] = in.snapshot()
		e.order = append(e.order, in.Config.Ticker)
	}
}

// assertAllocationTotal is a defensive check after a committed reallocation.
// A broken sum here is an engine bug, not a user error.
func (e *Engine) assertAllocationTotal() {
	var sum uint32
	for _, ticker := range e.order {
		sum += uint32(e.instruments[ticker].AllocationWeight)
	}
	if len(e.order) > 0 && sum != uint32(allocation.Total) {
		panic(fmt.Sprintf("FATAL: allocation total broken after commit: market=%s sum=%d", e.market, sum))
	}
}

func (e *Engine) notify(ticker string, now int64) {
	if e.onChange != nil {
		e.onChange(StateChange{Market: e.market, Ticker: ticker, Timestamp: now})
	}
}
