package event

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// DepositRequested queues a deposit for later execution by the keeper.
// Idempotency key: request key.
type DepositRequested struct {
	RequestKey   uuid.UUID
	Mkt          string
	Owner        string
	IsLong       bool
	AmountIn     *big.Int // collateral tokens
	ExecutionFee *big.Int

	Sequence  int64
	Timestamp time.Time
}

func (d *DepositRequested) IdempotencyKey() string { return d.RequestKey.String() }
func (d *DepositRequested) EventType() Type        { return TypeDepositRequested }
func (d *DepositRequested) Market() string         { return d.Mkt }
func (d *DepositRequested) SourceSequence() int64  { return d.Sequence }

// DepositExecuted settles a pending deposit at the supplied prices.
type DepositExecuted struct {
	RequestKey uuid.UUID
	Mkt        string

	Sequence  int64
	Timestamp time.Time
}

func (d *DepositExecuted) IdempotencyKey() string { return "exec:" + d.RequestKey.String() }
func (d *DepositExecuted) EventType() Type        { return TypeDepositExecuted }
func (d *DepositExecuted) Market() string         { return d.Mkt }
func (d *DepositExecuted) SourceSequence() int64  { return d.Sequence }

// DepositCancelled removes a pending deposit on the owner's behalf after
// its expiration window.
type DepositCancelled struct {
	RequestKey uuid.UUID
	Mkt        string
	Caller     string

	Sequence  int64
	Timestamp time.Time
}

func (d *DepositCancelled) IdempotencyKey() string { return "cancel:" + d.RequestKey.String() }
func (d *DepositCancelled) EventType() Type        { return TypeDepositCancelled }
func (d *DepositCancelled) Market() string         { return d.Mkt }
func (d *DepositCancelled) SourceSequence() int64  { return d.Sequence }

// WithdrawalRequested queues a withdrawal of pool shares.
type WithdrawalRequested struct {
	RequestKey   uuid.UUID
	Mkt          string
	Owner        string
	IsLong       bool     // collateral side to pay out on
	Shares       *big.Int // pool shares to burn
	ExecutionFee *big.Int

	Sequence  int64
	Timestamp time.Time
}

func (w *WithdrawalRequested) IdempotencyKey() string { return w.RequestKey.String() }
func (w *WithdrawalRequested) EventType() Type        { return TypeWithdrawalRequested }
func (w *WithdrawalRequested) Market() string         { return w.Mkt }
func (w *WithdrawalRequested) SourceSequence() int64  { return w.Sequence }

// WithdrawalExecuted settles a pending withdrawal at the supplied prices.
type WithdrawalExecuted struct {
	RequestKey uuid.UUID
	Mkt        string

	Sequence  int64
	Timestamp time.Time
}

func (w *WithdrawalExecuted) IdempotencyKey() string { return "exec:" + w.RequestKey.String() }
func (w *WithdrawalExecuted) EventType() Type        { return TypeWithdrawalExecuted }
func (w *WithdrawalExecuted) Market() string         { return w.Mkt }
func (w *WithdrawalExecuted) SourceSequence() int64  { return w.Sequence }

// WithdrawalCancelled removes a pending withdrawal on the owner's behalf
// after its expiration window.
type WithdrawalCancelled struct {
	RequestKey uuid.UUID
	Mkt        string
	Caller     string

	Sequence  int64
	Timestamp time.Time
}

func (w *WithdrawalCancelled) IdempotencyKey() string { return "cancel:" + w.RequestKey.String() }
func (w *WithdrawalCancelled) EventType() Type        { return TypeWithdrawalCancelled }
func (w *WithdrawalCancelled) Market() string         { return w.Mkt }
func (w *WithdrawalCancelled) SourceSequence() int64  { return w.Sequence }
