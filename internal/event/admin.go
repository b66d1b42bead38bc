package event

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Reallocate applies a new allocation weight vector, delivered in the
// bit-packed wire form the admin surface speaks. Decoded at the core
// boundary; the engine works on the plain weight list.
type Reallocate struct {
	BatchID uuid.UUID
	Mkt     string

	// Packed weights, four 16-bit fields per word, market-instrument order.
	EncodedWeights []uint64
	Count          int

	Sequence  int64
	Timestamp time.Time
}

func (r *Reallocate) IdempotencyKey() string { return r.BatchID.String() }
func (r *Reallocate) EventType() Type        { return TypeReallocate }
func (r *Reallocate) Market() string         { return r.Mkt }
func (r *Reallocate) SourceSequence() int64  { return r.Sequence }

// InstrumentConfig is the wire form of a per-instrument risk parameter set.
type InstrumentConfig struct {
	Ticker               string
	MaxLeverageBps       int64
	MaintenanceMarginBps int64
	ReserveFactorBps     int64

	MaxFundingVelocity *big.Int
	MaxFundingRate     *big.Int
	SkewScale          *big.Int
	FundingDeadZoneUsd *big.Int

	BorrowingFactor   *big.Int
	BorrowingExponent uint
	FeeForSmallerSide bool

	PositiveSkewScalarBps      int64
	NegativeSkewScalarBps      int64
	PositiveLiquidityScalarBps int64
	NegativeLiquidityScalarBps int64
}

// InstrumentAdded registers a new instrument together with the weight
// vector covering the enlarged market.
type InstrumentAdded struct {
	BatchID uuid.UUID
	Mkt     string
	Config  InstrumentConfig

	EncodedWeights []uint64
	Count          int

	Sequence  int64
	Timestamp time.Time
}

func (a *InstrumentAdded) IdempotencyKey() string { return a.BatchID.String() }
func (a *InstrumentAdded) EventType() Type        { return TypeInstrumentAdded }
func (a *InstrumentAdded) Market() string         { return a.Mkt }
func (a *InstrumentAdded) SourceSequence() int64  { return a.Sequence }

// InstrumentRemoved clears an instrument and reallocates the remainder.
type InstrumentRemoved struct {
	BatchID uuid.UUID
	Mkt     string
	Ticker  string

	EncodedWeights []uint64
	Count          int

	Sequence  int64
	Timestamp time.Time
}

func (r *InstrumentRemoved) IdempotencyKey() string { return r.BatchID.String() }
func (r *InstrumentRemoved) EventType() Type        { return TypeInstrumentRemoved }
func (r *InstrumentRemoved) Market() string         { return r.Mkt }
func (r *InstrumentRemoved) SourceSequence() int64  { return r.Sequence }

// FeeCollection pays one side's accumulated fee pot out to the recipient.
type FeeCollection struct {
	BatchID   uuid.UUID
	Mkt       string
	IsLong    bool
	Recipient string

	Sequence  int64
	Timestamp time.Time
}

func (f *FeeCollection) IdempotencyKey() string { return f.BatchID.String() }
func (f *FeeCollection) EventType() Type        { return TypeFeeCollection }
func (f *FeeCollection) Market() string         { return f.Mkt }
func (f *FeeCollection) SourceSequence() int64  { return f.Sequence }
