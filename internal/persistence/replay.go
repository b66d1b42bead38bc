package persistence

import (
	"encoding/json"
	"fmt"

	"VaultLedger/internal/event"
)

// DecodeEventRow turns a persisted event row back into its typed form for
// replay. Payloads are the JSON encoding of the in-memory event structs, so
// decoding is symmetric with what the core wrote.
func DecodeEventRow(row EventRow) (event.Event, error) {
	var evt event.Event

	switch row.EventType {
	case "TradeExecuted":
		evt = &event.TradeExecuted{}
	case "PriceUpdate":
		evt = &event.PriceUpdate{}
	case "NetPnlUpdate":
		evt = &event.NetPnlUpdate{}
	case "DepositRequested":
		evt = &event.DepositRequested{}
	case "DepositExecuted":
		evt = &event.DepositExecuted{}
	case "DepositCancelled":
		evt = &event.DepositCancelled{}
	case "WithdrawalRequested":
		evt = &event.WithdrawalRequested{}
	case "WithdrawalExecuted":
		evt = &event.WithdrawalExecuted{}
	case "WithdrawalCancelled":
		evt = &event.WithdrawalCancelled{}
	case "Reallocate":
		evt = &event.Reallocate{}
	case "InstrumentAdded":
		evt = &event.InstrumentAdded{}
	case "InstrumentRemoved":
		evt = &event.InstrumentRemoved{}
	case "ImpactPoolDelta":
		evt = &event.ImpactPoolDelta{}
	case "CollateralUpdate":
		evt = &event.CollateralUpdate{}
	case "ReservationUpdate":
		evt = &event.ReservationUpdate{}
	case "FeeCollection":
		evt = &event.FeeCollection{}
	default:
		return nil, fmt.Errorf("unknown event type in log: %s (sequence=%d)", row.EventType, row.Sequence)
	}

	if err := json.Unmarshal(row.Payload, evt); err != nil {
		return nil, fmt.Errorf("decode %s payload (sequence=%d): %w", row.EventType, row.Sequence, err)
	}

	return evt, nil
}
