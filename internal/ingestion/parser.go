package ingestion

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	"VaultLedger/internal/event"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell validates, parses, and converts raw
// events before sending them to the market core.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "TradeExecuted":
		return parseTradeExecuted(raw.Data)
	case "PriceUpdate":
		return parsePriceUpdate(raw.Data)
	case "NetPnlUpdate":
		return parseNetPnlUpdate(raw.Data)
	case "DepositRequested":
		return parseDepositRequested(raw.Data)
	case "DepositExecuted":
		return parseDepositExecuted(raw.Data)
	case "DepositCancelled":
		return parseDepositCancelled(raw.Data)
	case "WithdrawalRequested":
		return parseWithdrawalRequested(raw.Data)
	case "WithdrawalExecuted":
		return parseWithdrawalExecuted(raw.Data)
	case "WithdrawalCancelled":
		return parseWithdrawalCancelled(raw.Data)
	case "Reallocate":
		return parseReallocate(raw.Data)
	case "InstrumentAdded":
		return parseInstrumentAdded(raw.Data)
	case "InstrumentRemoved":
		return parseInstrumentRemoved(raw.Data)
	case "ImpactPoolDelta":
		return parseImpactPoolDelta(raw.Data)
	case "CollateralUpdate":
		return parseCollateralUpdate(raw.Data)
	case "ReservationUpdate":
		return parseReservationUpdate(raw.Data)
	case "FeeCollection":
		return parseFeeCollection(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers. Fixed-point
// amounts arrive as decimal strings; they exceed float64 precision and
// may exceed int64 range.

// parseAmount parses a signed decimal-string amount into a big.Int.
func parseAmount(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("parse %s: empty amount", field)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse %s: malformed amount %q", field, s)
	}
	return v, nil
}

// parseWeightWords parses packed allocation words. Words are full uint64
// values, so the wire carries them as decimal strings rather than JSON
// numbers.
func parseWeightWords(words []string) ([]uint64, error) {
	out := make([]uint64, len(words))
	for i, w := range words {
		v, err := strconv.ParseUint(w, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse encoded_weights[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

type tradeExecutedJSON struct {
	TradeID            string `json:"trade_id"`
	Market             string `json:"market"`
	Ticker             string `json:"ticker"`
	SizeDeltaUsd       string `json:"size_delta_usd"`
	IndexPrice         string `json:"index_price"`
	ImpactedPrice      string `json:"impacted_price"`
	CollateralPrice    string `json:"collateral_price"`
	CollateralBaseUnit string `json:"collateral_base_unit"`
	IsLong             bool   `json:"is_long"`
	IsIncrease         bool   `json:"is_increase"`
	Sequence           int64  `json:"sequence"`
	TimestampUs        int64  `json:"timestamp_us"`
}

func parseTradeExecuted(data []byte) (*event.TradeExecuted, error) {
	var j tradeExecutedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TradeExecuted: %w", err)
	}

	tradeID, err := uuid.Parse(j.TradeID)
	if err != nil {
		return nil, fmt.Errorf("parse trade_id: %w", err)
	}
	sizeDelta, err := parseAmount("size_delta_usd", j.SizeDeltaUsd)
	if err != nil {
		return nil, err
	}
	indexPrice, err := parseAmount("index_price", j.IndexPrice)
	if err != nil {
		return nil, err
	}
	impactedPrice, err := parseAmount("impacted_price", j.ImpactedPrice)
	if err != nil {
		return nil, err
	}
	collateralPrice, err := parseAmount("collateral_price", j.CollateralPrice)
	if err != nil {
		return nil, err
	}
	collateralBaseUnit, err := parseAmount("collateral_base_unit", j.CollateralBaseUnit)
	if err != nil {
		return nil, err
	}

	return &event.TradeExecuted{
		TradeID:            tradeID,
		Mkt:                j.Market,
		Ticker:             j.Ticker,
		SizeDeltaUsd:       sizeDelta,
		IndexPrice:         indexPrice,
		ImpactedPrice:      impactedPrice,
		CollateralPrice:    collateralPrice,
		CollateralBaseUnit: collateralBaseUnit,
		IsLong:             j.IsLong,
		IsIncrease:         j.IsIncrease,
		Sequence:           j.Sequence,
		Timestamp:          time.UnixMicro(j.TimestampUs),
	}, nil
}

type priceUpdateJSON struct {
	Market      string `json:"market"`
	Ticker      string `json:"ticker"`
	Bid         string `json:"bid"`
	Ask         string `json:"ask"`
	BaseUnit    string `json:"base_unit,omitempty"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parsePriceUpdate(data []byte) (*event.PriceUpdate, error) {
	var j priceUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PriceUpdate: %w", err)
	}

	bid, err := parseAmount("bid", j.Bid)
	if err != nil {
		return nil, err
	}
	ask, err := parseAmount("ask", j.Ask)
	if err != nil {
		return nil, err
	}

	// BaseUnit rides along with the first update per ticker only.
	var baseUnit *big.Int
	if j.BaseUnit != "" {
		baseUnit, err = parseAmount("base_unit", j.BaseUnit)
		if err != nil {
			return nil, err
		}
	}

	return &event.PriceUpdate{
		Mkt:       j.Market,
		Ticker:    j.Ticker,
		Bid:       bid,
		Ask:       ask,
		BaseUnit:  baseUnit,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type netPnlUpdateJSON struct {
	Market      string `json:"market"`
	PnlUsd      string `json:"pnl_usd"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseNetPnlUpdate(data []byte) (*event.NetPnlUpdate, error) {
	var j netPnlUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse NetPnlUpdate: %w", err)
	}
	pnl, err := parseAmount("pnl_usd", j.PnlUsd)
	if err != nil {
		return nil, err
	}
	return &event.NetPnlUpdate{
		Mkt:       j.Market,
		PnlUsd:    pnl,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type depositRequestedJSON struct {
	RequestKey   string `json:"request_key"`
	Market       string `json:"market"`
	Owner        string `json:"owner"`
	IsLong       bool   `json:"is_long"`
	AmountIn     string `json:"amount_in"`
	ExecutionFee string `json:"execution_fee"`
	Sequence     int64  `json:"sequence"`
	TimestampUs  int64  `json:"timestamp_us"`
}

func parseDepositRequested(data []byte) (*event.DepositRequested, error) {
	var j depositRequestedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DepositRequested: %w", err)
	}
	key, err := uuid.Parse(j.RequestKey)
	if err != nil {
		return nil, fmt.Errorf("parse request_key: %w", err)
	}
	amountIn, err := parseAmount("amount_in", j.AmountIn)
	if err != nil {
		return nil, err
	}
	executionFee, err := parseAmount("execution_fee", j.ExecutionFee)
	if err != nil {
		return nil, err
	}
	return &event.DepositRequested{
		RequestKey:   key,
		Mkt:          j.Market,
		Owner:        j.Owner,
		IsLong:       j.IsLong,
		AmountIn:     amountIn,
		ExecutionFee: executionFee,
		Sequence:     j.Sequence,
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}, nil
}

// requestSettleJSON covers the execute events, which carry only the key.
type requestSettleJSON struct {
	RequestKey  string `json:"request_key"`
	Market      string `json:"market"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseDepositExecuted(data []byte) (*event.DepositExecuted, error) {
	var j requestSettleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DepositExecuted: %w", err)
	}
	key, err := uuid.Parse(j.RequestKey)
	if err != nil {
		return nil, fmt.Errorf("parse request_key: %w", err)
	}
	return &event.DepositExecuted{
		RequestKey: key,
		Mkt:        j.Market,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type requestCancelJSON struct {
	RequestKey  string `json:"request_key"`
	Market      string `json:"market"`
	Caller      string `json:"caller"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseDepositCancelled(data []byte) (*event.DepositCancelled, error) {
	var j requestCancelJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DepositCancelled: %w", err)
	}
	key, err := uuid.Parse(j.RequestKey)
	if err != nil {
		return nil, fmt.Errorf("parse request_key: %w", err)
	}
	return &event.DepositCancelled{
		RequestKey: key,
		Mkt:        j.Market,
		Caller:     j.Caller,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type withdrawalRequestedJSON struct {
	RequestKey   string `json:"request_key"`
	Market       string `json:"market"`
	Owner        string `json:"owner"`
	IsLong       bool   `json:"is_long"`
	Shares       string `json:"shares"`
	ExecutionFee string `json:"execution_fee"`
	Sequence     int64  `json:"sequence"`
	TimestampUs  int64  `json:"timestamp_us"`
}

func parseWithdrawalRequested(data []byte) (*event.WithdrawalRequested, error) {
	var j withdrawalRequestedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse WithdrawalRequested: %w", err)
	}
	key, err := uuid.Parse(j.RequestKey)
	if err != nil {
		return nil, fmt.Errorf("parse request_key: %w", err)
	}
	shares, err := parseAmount("shares", j.Shares)
	if err != nil {
		return nil, err
	}
	executionFee, err := parseAmount("execution_fee", j.ExecutionFee)
	if err != nil {
		return nil, err
	}
	return &event.WithdrawalRequested{
		RequestKey:   key,
		Mkt:          j.Market,
		Owner:        j.Owner,
		IsLong:       j.IsLong,
		Shares:       shares,
		ExecutionFee: executionFee,
		Sequence:     j.Sequence,
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseWithdrawalExecuted(data []byte) (*event.WithdrawalExecuted, error) {
	var j requestSettleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse WithdrawalExecuted: %w", err)
	}
	key, err := uuid.Parse(j.RequestKey)
	if err != nil {
		return nil, fmt.Errorf("parse request_key: %w", err)
	}
	return &event.WithdrawalExecuted{
		RequestKey: key,
		Mkt:        j.Market,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseWithdrawalCancelled(data []byte) (*event.WithdrawalCancelled, error) {
	var j requestCancelJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse WithdrawalCancelled: %w", err)
	}
	key, err := uuid.Parse(j.RequestKey)
	if err != nil {
		return nil, fmt.Errorf("parse request_key: %w", err)
	}
	return &event.WithdrawalCancelled{
		RequestKey: key,
		Mkt:        j.Market,
		Caller:     j.Caller,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type reallocateJSON struct {
	BatchID        string   `json:"batch_id"`
	Market         string   `json:"market"`
	EncodedWeights []string `json:"encoded_weights"`
	Count          int      `json:"count"`
	Sequence       int64    `json:"sequence"`
	TimestampUs    int64    `json:"timestamp_us"`
}

func parseReallocate(data []byte) (*event.Reallocate, error) {
	var j reallocateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Reallocate: %w", err)
	}
	batchID, err := uuid.Parse(j.BatchID)
	if err != nil {
		return nil, fmt.Errorf("parse batch_id: %w", err)
	}
	words, err := parseWeightWords(j.EncodedWeights)
	if err != nil {
		return nil, err
	}
	return &event.Reallocate{
		BatchID:        batchID,
		Mkt:            j.Market,
		EncodedWeights: words,
		Count:          j.Count,
		Sequence:       j.Sequence,
		Timestamp:      time.UnixMicro(j.TimestampUs),
	}, nil
}

type instrumentConfigJSON struct {
	Ticker               string `json:"ticker"`
	MaxLeverageBps       int64  `json:"max_leverage_bps"`
	MaintenanceMarginBps int64  `json:"maintenance_margin_bps"`
	ReserveFactorBps     int64  `json:"reserve_factor_bps"`

	MaxFundingVelocity string `json:"max_funding_velocity"`
	MaxFundingRate     string `json:"max_funding_rate"`
	SkewScale          string `json:"skew_scale"`
	FundingDeadZoneUsd string `json:"funding_dead_zone_usd"`

	BorrowingFactor   string `json:"borrowing_factor"`
	BorrowingExponent uint   `json:"borrowing_exponent"`
	FeeForSmallerSide bool   `json:"fee_for_smaller_side"`

	PositiveSkewScalarBps      int64 `json:"positive_skew_scalar_bps"`
	NegativeSkewScalarBps      int64 `json:"negative_skew_scalar_bps"`
	PositiveLiquidityScalarBps int64 `json:"positive_liquidity_scalar_bps"`
	NegativeLiquidityScalarBps int64 `json:"negative_liquidity_scalar_bps"`
}

func (j *instrumentConfigJSON) toConfig() (event.InstrumentConfig, error) {
	maxFundingVelocity, err := parseAmount("max_funding_velocity", j.MaxFundingVelocity)
	if err != nil {
		return event.InstrumentConfig{}, err
	}
	maxFundingRate, err := parseAmount("max_funding_rate", j.MaxFundingRate)
	if err != nil {
		return event.InstrumentConfig{}, err
	}
	skewScale, err := parseAmount("skew_scale", j.SkewScale)
	if err != nil {
		return event.InstrumentConfig{}, err
	}
	deadZone, err := parseAmount("funding_dead_zone_usd", j.FundingDeadZoneUsd)
	if err != nil {
		return event.InstrumentConfig{}, err
	}
	borrowingFactor, err := parseAmount("borrowing_factor", j.BorrowingFactor)
	if err != nil {
		return event.InstrumentConfig{}, err
	}
	return event.InstrumentConfig{
		Ticker:                     j.Ticker,
		MaxLeverageBps:             j.MaxLeverageBps,
		MaintenanceMarginBps:       j.MaintenanceMarginBps,
		ReserveFactorBps:           j.ReserveFactorBps,
		MaxFundingVelocity:         maxFundingVelocity,
		MaxFundingRate:             maxFundingRate,
		SkewScale:                  skewScale,
		FundingDeadZoneUsd:         deadZone,
		BorrowingFactor:            borrowingFactor,
		BorrowingExponent:          j.BorrowingExponent,
		FeeForSmallerSide:          j.FeeForSmallerSide,
		PositiveSkewScalarBps:      j.PositiveSkewScalarBps,
		NegativeSkewScalarBps:      j.NegativeSkewScalarBps,
		PositiveLiquidityScalarBps: j.PositiveLiquidityScalarBps,
		NegativeLiquidityScalarBps: j.NegativeLiquidityScalarBps,
	}, nil
}

type instrumentAddedJSON struct {
	BatchID        string               `json:"batch_id"`
	Market         string               `json:"market"`
	Config         instrumentConfigJSON `json:"config"`
	EncodedWeights []string             `json:"encoded_weights"`
	Count          int                  `json:"count"`
	Sequence       int64                `json:"sequence"`
	TimestampUs    int64                `json:"timestamp_us"`
}

func parseInstrumentAdded(data []byte) (*event.InstrumentAdded, error) {
	var j instrumentAddedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse InstrumentAdded: %w", err)
	}
	batchID, err := uuid.Parse(j.BatchID)
	if err != nil {
		return nil, fmt.Errorf("parse batch_id: %w", err)
	}
	cfg, err := j.Config.toConfig()
	if err != nil {
		return nil, err
	}
	words, err := parseWeightWords(j.EncodedWeights)
	if err != nil {
		return nil, err
	}
	return &event.InstrumentAdded{
		BatchID:        batchID,
		Mkt:            j.Market,
		Config:         cfg,
		EncodedWeights: words,
		Count:          j.Count,
		Sequence:       j.Sequence,
		Timestamp:      time.UnixMicro(j.TimestampUs),
	}, nil
}

type instrumentRemovedJSON struct {
	BatchID        string   `json:"batch_id"`
	Market         string   `json:"market"`
	Ticker         string   `json:"ticker"`
	EncodedWeights []string `json:"encoded_weights"`
	Count          int      `json:"count"`
	Sequence       int64    `json:"sequence"`
	TimestampUs    int64    `json:"timestamp_us"`
}

func parseInstrumentRemoved(data []byte) (*event.InstrumentRemoved, error) {
	var j instrumentRemovedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse InstrumentRemoved: %w", err)
	}
	batchID, err := uuid.Parse(j.BatchID)
	if err != nil {
		return nil, fmt.Errorf("parse batch_id: %w", err)
	}
	words, err := parseWeightWords(j.EncodedWeights)
	if err != nil {
		return nil, err
	}
	return &event.InstrumentRemoved{
		BatchID:        batchID,
		Mkt:            j.Market,
		Ticker:         j.Ticker,
		EncodedWeights: words,
		Count:          j.Count,
		Sequence:       j.Sequence,
		Timestamp:      time.UnixMicro(j.TimestampUs),
	}, nil
}

type impactPoolDeltaJSON struct {
	DeltaID     string `json:"delta_id"`
	Market      string `json:"market"`
	Ticker      string `json:"ticker"`
	DeltaUsd    string `json:"delta_usd"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseImpactPoolDelta(data []byte) (*event.ImpactPoolDelta, error) {
	var j impactPoolDeltaJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ImpactPoolDelta: %w", err)
	}
	deltaID, err := uuid.Parse(j.DeltaID)
	if err != nil {
		return nil, fmt.Errorf("parse delta_id: %w", err)
	}
	delta, err := parseAmount("delta_usd", j.DeltaUsd)
	if err != nil {
		return nil, err
	}
	return &event.ImpactPoolDelta{
		DeltaID:   deltaID,
		Mkt:       j.Market,
		Ticker:    j.Ticker,
		DeltaUsd:  delta,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type positionUpdateJSON struct {
	UpdateID    string `json:"update_id"`
	Market      string `json:"market"`
	User        string `json:"user"`
	IsLong      bool   `json:"is_long"`
	Delta       string `json:"delta"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseCollateralUpdate(data []byte) (*event.CollateralUpdate, error) {
	var j positionUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CollateralUpdate: %w", err)
	}
	updateID, err := uuid.Parse(j.UpdateID)
	if err != nil {
		return nil, fmt.Errorf("parse update_id: %w", err)
	}
	delta, err := parseAmount("delta", j.Delta)
	if err != nil {
		return nil, err
	}
	return &event.CollateralUpdate{
		UpdateID:  updateID,
		Mkt:       j.Market,
		User:      j.User,
		IsLong:    j.IsLong,
		Delta:     delta,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseReservationUpdate(data []byte) (*event.ReservationUpdate, error) {
	var j positionUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ReservationUpdate: %w", err)
	}
	updateID, err := uuid.Parse(j.UpdateID)
	if err != nil {
		return nil, fmt.Errorf("parse update_id: %w", err)
	}
	delta, err := parseAmount("delta", j.Delta)
	if err != nil {
		return nil, err
	}
	return &event.ReservationUpdate{
		UpdateID:  updateID,
		Mkt:       j.Market,
		User:      j.User,
		IsLong:    j.IsLong,
		Delta:     delta,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type feeCollectionJSON struct {
	BatchID     string `json:"batch_id"`
	Market      string `json:"market"`
	IsLong      bool   `json:"is_long"`
	Recipient   string `json:"recipient"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseFeeCollection(data []byte) (*event.FeeCollection, error) {
	var j feeCollectionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse FeeCollection: %w", err)
	}
	batchID, err := uuid.Parse(j.BatchID)
	if err != nil {
		return nil, fmt.Errorf("parse batch_id: %w", err)
	}
	return &event.FeeCollection{
		BatchID:   batchID,
		Mkt:       j.Market,
		IsLong:    j.IsLong,
		Recipient: j.Recipient,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}
