package event

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// TradeExecuted is one trade event from the position keeper: an open,
// increase, decrease, or close against a single instrument.
// Idempotency key: trade id (UUID assigned upstream).
type TradeExecuted struct {
	TradeID uuid.UUID // Idempotency key
	Mkt     string
	Ticker  string

	// Unsigned notional magnitude, wad USD. IsIncrease selects direction.
	SizeDeltaUsd *big.Int

	IndexPrice    *big.Int // wad USD
	ImpactedPrice *big.Int // wad USD, execution price after impact

	// Collateral pricing for the borrowing capacity computation.
	CollateralPrice    *big.Int
	CollateralBaseUnit *big.Int

	IsLong     bool
	IsIncrease bool

	Sequence  int64     // Source sequence from the keeper
	Timestamp time.Time // Versioned input timestamp (NOT wall-clock)
}

func (t *TradeExecuted) IdempotencyKey() string { return t.TradeID.String() }
func (t *TradeExecuted) EventType() Type        { return TypeTradeExecuted }
func (t *TradeExecuted) Market() string         { return t.Mkt }
func (t *TradeExecuted) SourceSequence() int64  { return t.Sequence }

// ImpactPoolDelta moves USD into or out of an instrument's impact pool.
// Negative price impact pays in; positive impact payouts draw out.
type ImpactPoolDelta struct {
	DeltaID  uuid.UUID
	Mkt      string
	Ticker   string
	DeltaUsd *big.Int // signed, wad USD

	Sequence  int64
	Timestamp time.Time
}

func (d *ImpactPoolDelta) IdempotencyKey() string { return d.DeltaID.String() }
func (d *ImpactPoolDelta) EventType() Type        { return TypeImpactPoolDelta }
func (d *ImpactPoolDelta) Market() string         { return d.Mkt }
func (d *ImpactPoolDelta) SourceSequence() int64  { return d.Sequence }
