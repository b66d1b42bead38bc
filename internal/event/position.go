package event

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// CollateralUpdate records collateral moving behind a user's positions.
// Originates from the position-lifecycle keeper.
type CollateralUpdate struct {
	UpdateID uuid.UUID
	Mkt      string
	User     string
	IsLong   bool
	Delta    *big.Int // signed token amount

	Sequence  int64
	Timestamp time.Time
}

func (c *CollateralUpdate) IdempotencyKey() string { return c.UpdateID.String() }
func (c *CollateralUpdate) EventType() Type        { return TypeCollateralUpdate }
func (c *CollateralUpdate) Market() string         { return c.Mkt }
func (c *CollateralUpdate) SourceSequence() int64  { return c.Sequence }

// ReservationUpdate earmarks or releases vault liquidity against a user's
// open positions.
type ReservationUpdate struct {
	UpdateID uuid.UUID
	Mkt      string
	User     string
	IsLong   bool
	Delta    *big.Int // signed token amount, positive reserves

	Sequence  int64
	Timestamp time.Time
}

func (r *ReservationUpdate) IdempotencyKey() string { return r.UpdateID.String() }
func (r *ReservationUpdate) EventType() Type        { return TypeReservationUpdate }
func (r *ReservationUpdate) Market() string         { return r.Mkt }
func (r *ReservationUpdate) SourceSequence() int64  { return r.Sequence }
