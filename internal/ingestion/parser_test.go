package ingestion_test

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"VaultLedger/internal/event"
	"VaultLedger/internal/ingestion"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func bigEq(t *testing.T, field string, got *big.Int, want string) {
	t.Helper()
	w, _ := new(big.Int).SetString(want, 10)
	if got == nil || got.Cmp(w) != 0 {
		t.Errorf("%s: got %v, want %s", field, got, want)
	}
}

func TestParseTradeExecuted(t *testing.T) {
	payload := map[string]interface{}{
		"trade_id":             "550e8400-e29b-41d4-a716-446655440000",
		"market":               "WETH-USDC",
		"ticker":               "WETH",
		"size_delta_usd":       "1000000000000000000000",
		"index_price":          "3000000000000000000000",
		"impacted_price":       "3001500000000000000000",
		"collateral_price":     "1000000000000000000",
		"collateral_base_unit": "1000000",
		"is_long":              true,
		"is_increase":          true,
		"sequence":             int64(42),
		"timestamp_us":         int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "TradeExecuted")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	te, ok := evt.(*event.TradeExecuted)
	if !ok {
		t.Fatalf("expected *event.TradeExecuted, got %T", evt)
	}

	if te.Mkt != "WETH-USDC" {
		t.Errorf("market: got %s, want WETH-USDC", te.Mkt)
	}
	if te.Ticker != "WETH" {
		t.Errorf("ticker: got %s, want WETH", te.Ticker)
	}
	bigEq(t, "size_delta_usd", te.SizeDeltaUsd, "1000000000000000000000")
	bigEq(t, "impacted_price", te.ImpactedPrice, "3001500000000000000000")
	bigEq(t, "collateral_base_unit", te.CollateralBaseUnit, "1000000")
	if !te.IsLong || !te.IsIncrease {
		t.Errorf("direction: got long=%v increase=%v, want both true", te.IsLong, te.IsIncrease)
	}
	if te.SourceSequence() != 42 {
		t.Errorf("sequence: got %d, want 42", te.SourceSequence())
	}
	if te.EventType() != event.TypeTradeExecuted {
		t.Errorf("event type: got %v, want TradeExecuted", te.EventType())
	}
}

func TestParsePriceUpdate(t *testing.T) {
	payload := map[string]interface{}{
		"market":       "WETH-USDC",
		"ticker":       "WETH",
		"bid":          "2999000000000000000000",
		"ask":          "3001000000000000000000",
		"base_unit":    "1000000000000000000",
		"sequence":     int64(100),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "PriceUpdate")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pu, ok := evt.(*event.PriceUpdate)
	if !ok {
		t.Fatalf("expected *event.PriceUpdate, got %T", evt)
	}

	bigEq(t, "bid", pu.Bid, "2999000000000000000000")
	bigEq(t, "ask", pu.Ask, "3001000000000000000000")
	bigEq(t, "base_unit", pu.BaseUnit, "1000000000000000000")
	if pu.SourceSequence() != 100 {
		t.Errorf("sequence: got %d, want 100", pu.SourceSequence())
	}
}

func TestParsePriceUpdate_OmittedBaseUnit(t *testing.T) {
	payload := map[string]interface{}{
		"market":       "WETH-USDC",
		"ticker":       "WETH",
		"bid":          "2999000000000000000000",
		"ask":          "3001000000000000000000",
		"sequence":     int64(101),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "PriceUpdate")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pu := evt.(*event.PriceUpdate)
	if pu.BaseUnit != nil {
		t.Errorf("base_unit: got %v, want nil when omitted", pu.BaseUnit)
	}
}

func TestParseNetPnlUpdate_Negative(t *testing.T) {
	payload := map[string]interface{}{
		"market":       "WETH-USDC",
		"pnl_usd":      "-50000000000000000000000",
		"sequence":     int64(7),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "NetPnlUpdate")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pnl, ok := evt.(*event.NetPnlUpdate)
	if !ok {
		t.Fatalf("expected *event.NetPnlUpdate, got %T", evt)
	}
	bigEq(t, "pnl_usd", pnl.PnlUsd, "-50000000000000000000000")
	if pnl.PnlUsd.Sign() >= 0 {
		t.Error("expected negative pnl to survive parsing")
	}
}

func TestParseDepositRequested(t *testing.T) {
	payload := map[string]interface{}{
		"request_key":   "550e8400-e29b-41d4-a716-446655440000",
		"market":        "WETH-USDC",
		"owner":         "0xabc",
		"is_long":       false,
		"amount_in":     "1000000000000000000000000",
		"execution_fee": "100000000000000",
		"sequence":      int64(1),
		"timestamp_us":  int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "DepositRequested")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	dr, ok := evt.(*event.DepositRequested)
	if !ok {
		t.Fatalf("expected *event.DepositRequested, got %T", evt)
	}
	if dr.Owner != "0xabc" {
		t.Errorf("owner: got %s, want 0xabc", dr.Owner)
	}
	if dr.IsLong {
		t.Error("is_long: got true, want false")
	}
	bigEq(t, "amount_in", dr.AmountIn, "1000000000000000000000000")
	bigEq(t, "execution_fee", dr.ExecutionFee, "100000000000000")
}

func TestParseWithdrawalLifecycle(t *testing.T) {
	key := "660e8400-e29b-41d4-a716-446655440001"

	reqRaw := rawFromJSON(t, map[string]interface{}{
		"request_key":   key,
		"market":        "WETH-USDC",
		"owner":         "0xdef",
		"is_long":       true,
		"shares":        "500000000000000000000",
		"execution_fee": "100000000000000",
		"sequence":      int64(2),
		"timestamp_us":  int64(1700000000000000),
	})
	evt, err := ingestion.ParseRawEvent(reqRaw, "WithdrawalRequested")
	if err != nil {
		t.Fatalf("parse requested: %v", err)
	}
	wr := evt.(*event.WithdrawalRequested)
	bigEq(t, "shares", wr.Shares, "500000000000000000000")

	execRaw := rawFromJSON(t, map[string]interface{}{
		"request_key":  key,
		"market":       "WETH-USDC",
		"sequence":     int64(3),
		"timestamp_us": int64(1700000001000000),
	})
	evt, err = ingestion.ParseRawEvent(execRaw, "WithdrawalExecuted")
	if err != nil {
		t.Fatalf("parse executed: %v", err)
	}
	we := evt.(*event.WithdrawalExecuted)
	if we.RequestKey != wr.RequestKey {
		t.Error("executed request_key does not match requested")
	}
	if we.IdempotencyKey() == wr.IdempotencyKey() {
		t.Error("request and execute must carry distinct idempotency keys")
	}

	cancelRaw := rawFromJSON(t, map[string]interface{}{
		"request_key":  key,
		"market":       "WETH-USDC",
		"caller":       "0xkeeper",
		"sequence":     int64(4),
		"timestamp_us": int64(1700000002000000),
	})
	evt, err = ingestion.ParseRawEvent(cancelRaw, "WithdrawalCancelled")
	if err != nil {
		t.Fatalf("parse cancelled: %v", err)
	}
	wc := evt.(*event.WithdrawalCancelled)
	if wc.Caller != "0xkeeper" {
		t.Errorf("caller: got %s, want 0xkeeper", wc.Caller)
	}
}

func TestParseInstrumentAdded(t *testing.T) {
	payload := map[string]interface{}{
		"batch_id": "770e8400-e29b-41d4-a716-446655440002",
		"market":   "WETH-USDC",
		"config": map[string]interface{}{
			"ticker":                        "WBTC",
			"max_leverage_bps":              int64(500_000),
			"maintenance_margin_bps":        int64(500),
			"reserve_factor_bps":            int64(2_500),
			"max_funding_velocity":          "1000000000000000000",
			"max_funding_rate":              "1000000000000000000",
			"skew_scale":                    "1000000000000000000000000",
			"funding_dead_zone_usd":         "0",
			"borrowing_factor":              "10000000000000000",
			"borrowing_exponent":            uint(1),
			"fee_for_smaller_side":          false,
			"positive_skew_scalar_bps":      int64(10_000),
			"negative_skew_scalar_bps":      int64(10_000),
			"positive_liquidity_scalar_bps": int64(10_000),
			"negative_liquidity_scalar_bps": int64(10_000),
		},
		"encoded_weights": []string{"18446744073709551615"},
		"count":           2,
		"sequence":        int64(5),
		"timestamp_us":    int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "InstrumentAdded")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	ia, ok := evt.(*event.InstrumentAdded)
	if !ok {
		t.Fatalf("expected *event.InstrumentAdded, got %T", evt)
	}
	if ia.Config.Ticker != "WBTC" {
		t.Errorf("config ticker: got %s, want WBTC", ia.Config.Ticker)
	}
	bigEq(t, "skew_scale", ia.Config.SkewScale, "1000000000000000000000000")
	if ia.Config.BorrowingExponent != 1 {
		t.Errorf("borrowing_exponent: got %d, want 1", ia.Config.BorrowingExponent)
	}
	// Full-range uint64 word must survive the string round trip.
	if len(ia.EncodedWeights) != 1 || ia.EncodedWeights[0] != ^uint64(0) {
		t.Errorf("encoded_weights: got %v, want [MaxUint64]", ia.EncodedWeights)
	}
	if ia.Count != 2 {
		t.Errorf("count: got %d, want 2", ia.Count)
	}
}

func TestParseReallocate(t *testing.T) {
	payload := map[string]interface{}{
		"batch_id":        "880e8400-e29b-41d4-a716-446655440003",
		"market":          "WETH-USDC",
		"encoded_weights": []string{"6000400030001000", "2000"},
		"count":           5,
		"sequence":        int64(6),
		"timestamp_us":    int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "Reallocate")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	re := evt.(*event.Reallocate)
	if len(re.EncodedWeights) != 2 {
		t.Fatalf("encoded_weights: got %d words, want 2", len(re.EncodedWeights))
	}
	if re.Count != 5 {
		t.Errorf("count: got %d, want 5", re.Count)
	}
}

func TestParseCollateralAndReservation(t *testing.T) {
	payload := map[string]interface{}{
		"update_id":    "990e8400-e29b-41d4-a716-446655440004",
		"market":       "WETH-USDC",
		"user":         "0xuser",
		"is_long":      true,
		"delta":        "-250000000000000000000",
		"sequence":     int64(8),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "CollateralUpdate")
	if err != nil {
		t.Fatalf("parse collateral: %v", err)
	}
	cu := evt.(*event.CollateralUpdate)
	bigEq(t, "delta", cu.Delta, "-250000000000000000000")

	evt, err = ingestion.ParseRawEvent(raw, "ReservationUpdate")
	if err != nil {
		t.Fatalf("parse reservation: %v", err)
	}
	ru := evt.(*event.ReservationUpdate)
	if ru.User != "0xuser" {
		t.Errorf("user: got %s, want 0xuser", ru.User)
	}
}

func TestParseFeeCollection(t *testing.T) {
	payload := map[string]interface{}{
		"batch_id":     "aa0e8400-e29b-41d4-a716-446655440005",
		"market":       "WETH-USDC",
		"is_long":      false,
		"recipient":    "0xtreasury",
		"sequence":     int64(9),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "FeeCollection")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	fc := evt.(*event.FeeCollection)
	if fc.Recipient != "0xtreasury" {
		t.Errorf("recipient: got %s, want 0xtreasury", fc.Recipient)
	}
	if fc.IsLong {
		t.Error("is_long: got true, want false")
	}
}

func TestParseUnknownEventType_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{}`)}
	_, err := ingestion.ParseRawEvent(raw, "NonExistentType")
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{invalid json`)}
	_, err := ingestion.ParseRawEvent(raw, "TradeExecuted")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseMalformedAmount_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"market":       "WETH-USDC",
		"pnl_usd":      "1.5e18",
		"sequence":     int64(1),
		"timestamp_us": int64(0),
	}
	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "NetPnlUpdate")
	if err == nil {
		t.Fatal("expected error for non-integer amount")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"trade_id":             "not-a-uuid",
		"market":               "WETH-USDC",
		"ticker":               "WETH",
		"size_delta_usd":       "1",
		"index_price":          "1",
		"impacted_price":       "1",
		"collateral_price":     "1",
		"collateral_base_unit": "1",
		"is_long":              true,
		"is_increase":          true,
		"sequence":             int64(0),
		"timestamp_us":         int64(0),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "TradeExecuted")
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}
