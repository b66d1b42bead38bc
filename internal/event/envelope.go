package event

import (
	"time"
)

// Type discriminates event payloads in the log.
type Type int32

const (
	TypeUnknown Type = iota
	TypeTradeExecuted
	TypePriceUpdate
	TypeNetPnlUpdate
	TypeDepositRequested
	TypeDepositExecuted
	TypeDepositCancelled
	TypeWithdrawalRequested
	TypeWithdrawalExecuted
	TypeWithdrawalCancelled
	TypeReallocate
	TypeInstrumentAdded
	TypeInstrumentRemoved
	TypeImpactPoolDelta
	TypeCollateralUpdate
	TypeReservationUpdate
	TypeFeeCollection
)

// Envelope wraps every event in the log.
type Envelope struct {
	// Global monotonic sequence assigned by the core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType Type

	// Market context
	Market string

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads implement.
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() Type

	// Market returns the market context
	Market() string

	// SourceSequence returns the upstream ordering key
	SourceSequence() int64
}

func (t Type) String() string {
	switch t {
	case TypeTradeExecuted:
		return "TradeExecuted"
	case TypePriceUpdate:
		return "PriceUpdate"
	case TypeNetPnlUpdate:
		return "NetPnlUpdate"
	case TypeDepositRequested:
		return "DepositRequested"
	case TypeDepositExecuted:
		return "DepositExecuted"
	case TypeDepositCancelled:
		return "DepositCancelled"
	case TypeWithdrawalRequested:
		return "WithdrawalRequested"
	case TypeWithdrawalExecuted:
		return "WithdrawalExecuted"
	case TypeWithdrawalCancelled:
		return "WithdrawalCancelled"
	case TypeReallocate:
		return "Reallocate"
	case TypeInstrumentAdded:
		return "InstrumentAdded"
	case TypeInstrumentRemoved:
		return "InstrumentRemoved"
	case TypeImpactPoolDelta:
		return "ImpactPoolDelta"
	case TypeCollateralUpdate:
		return "CollateralUpdate"
	case TypeReservationUpdate:
		return "ReservationUpdate"
	case TypeFeeCollection:
		return "FeeCollection"
	default:
		return "Unknown"
	}
}
