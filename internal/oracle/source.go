package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// The price source is an external collaborator. The engine only depends on
// this boundary: every instrument and both collateral sides must have a
// price whenever a reallocation or AUM computation runs, otherwise the
// operation fails before touching state.

var (
	ErrMissingPrice    = errors.New("oracle: no price for ticker")
	ErrMissingBaseUnit = errors.New("oracle: no base unit for ticker")
	ErrInvalidPrice    = errors.New("oracle: price must be positive")
)

// Price is a bid/ask pair in wad USD. Every engine computation picks the
// bound that works against the liquidity provider.
type Price struct {
	Bid *big.Int
	Ask *big.Int
}

// Min returns the conservative low bound.
func (p Price) Min() *big.Int {
	if p.Bid.Cmp(p.Ask) <= 0 {
		return new(big.Int).Set(p.Bid)
	}
	return new(big.Int).Set(p.Ask)
}

// Max returns the conservative high bound.
func (p Price) Max() *big.Int {
	if p.Bid.Cmp(p.Ask) >= 0 {
		return new(big.Int).Set(p.Bid)
	}
	return new(big.Int).Set(p.Ask)
}

// Mid returns the midpoint, used for skew bookkeeping where neither side
// should be favored.
func (p Price) Mid() *big.Int {
	sum := new(big.Int).Add(p.Bid, p.Ask)
	return sum.Quo(sum, big.NewInt(2))
}

func (p Price) valid() bool {
	return p.Bid != nil && p.Ask != nil && p.Bid.Sign() > 0 && p.Ask.Sign() > 0
}

// Source supplies prices and token scales for instruments and collateral.
type Source interface {
	Price(ticker string) (Price, error)
	BaseUnit(ticker string) (*big.Int, error)
}

// Snapshot is a point-in-time price set captured for a single operation, so
// a multi-instrument computation sees one consistent view.
type Snapshot struct {
	Prices map[string]Price
}

// Price returns the snapshot price for ticker.
func (s *Snapshot) Price(ticker string) (Price, error) {
	p, ok := s.Prices[ticker]
	if !ok || !p.valid() {
		return Price{}, fmt.Errorf("%w: %s", ErrMissingPrice, ticker)
	}
	return p, nil
}

// Static is an in-memory Source fed by inbound price events. Reads may run
// concurrently with the update path.
type Static struct {
	mu        sync.RWMutex
	prices    map[string]Price
	baseUnits map[string]*big.Int
	sequences map[string]int64
}

func NewStatic() *Static {
	return &Static{
		prices:    make(map[string]Price),
		baseUnits: make(map[string]*big.Int),
		sequences: make(map[string]int64),
	}
}

// SetBaseUnit registers the token scale (10^decimals) for a ticker.
func (s *Static) SetBaseUnit(ticker string, baseUnit *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseUnits[ticker] = new(big.Int).Set(baseUnit)
}

// SetPrice stores a bid/ask pair. Stale updates (sequence lower than the
// last applied one) are ignored; gaps are tolerated.
func (s *Static) SetPrice(ticker string, bid, ask *big.Int, sequence int64) error {
	p := Price{Bid: new(big.Int).Set(bid), Ask: new(big.Int).Set(ask)}
	if !p.valid() {
		return fmt.Errorf("%w: %s bid=%s ask=%s", ErrInvalidPrice, ticker, bid, ask)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sequence < s.sequences[ticker] {
		return nil
	}
	s.prices[ticker] = p
	s.sequences[ticker] = sequence
	return nil
}

func (s *Static) Price(ticker string) (Price, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[ticker]
	if !ok {
		return Price{}, fmt.Errorf("%w: %s", ErrMissingPrice, ticker)
	}
	return p, nil
}

func (s *Static) BaseUnit(ticker string) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bu, ok := s.baseUnits[ticker]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingBaseUnit, ticker)
	}
	return new(big.Int).Set(bu), nil
}

// PriceState is the serializable form of one ticker's stored price.
type PriceState struct {
	Bid      *big.Int
	Ask      *big.Int
	Sequence int64
}

// SourceState is the serializable form of the whole price store.
type SourceState struct {
	Prices    map[string]PriceState
	BaseUnits map[string]*big.Int
}

// Export captures the full price store for snapshots.
func (s *Static) Export() *SourceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &SourceState{
		Prices:    make(map[string]PriceState, len(s.prices)),
		BaseUnits: make(map[string]*big.Int, len(s.baseUnits)),
	}
	for ticker, p := range s.prices {
		out.Prices[ticker] = PriceState{
			Bid:      new(big.Int).Set(p.Bid),
			Ask:      new(big.Int).Set(p.Ask),
			Sequence: s.sequences[ticker],
		}
	}
	for ticker, bu := range s.baseUnits {
		out.BaseUnits[ticker] = new(big.Int).Set(bu)
	}
	return out
}

// Restore replaces the price store. Used on warm restart before replay.
func (s *Static) Restore(st *SourceState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices = make(map[string]Price, len(st.Prices))
	s.sequences = make(map[string]int64, len(st.Prices))
	s.baseUnits = make(map[string]*big.Int, len(st.BaseUnits))
	for ticker, p := range st.Prices {
		s.prices[ticker] = Price{Bid: new(big.Int).Set(p.Bid), Ask: new(big.Int).Set(p.Ask)}
		s.sequences[ticker] = p.Sequence
	}
	for ticker, bu := range st.BaseUnits {
		s.baseUnits[ticker] = new(big.Int).Set(bu)
	}
}

// SnapshotFor captures a consistent snapshot for the given tickers.
// Fails if any ticker has no price.
func (s *Static) SnapshotFor(tickers []string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{Prices: make(map[string]Price, len(tickers))}
	for _, ticker := range tickers {
		p, ok := s.prices[ticker]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingPrice, ticker)
		}
		snap.Prices[ticker] = p
	}
	return snap, nil
}
