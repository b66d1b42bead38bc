package query

import (
	"encoding/json"
	"time"
)

// Amounts serialize as decimal strings: they are fixed-point integers with
// 18 decimals and exceed both float64 precision and int64 range.

// VaultSummaryResponse is the vault ledger's headline figures for one market.
type VaultSummaryResponse struct {
	Market string `json:"market"`

	LongBalance  string `json:"long_balance"`
	LongReserved string `json:"long_reserved"`
	LongFees     string `json:"long_fees"`

	ShortBalance  string `json:"short_balance"`
	ShortReserved string `json:"short_reserved"`
	ShortFees     string `json:"short_fees"`

	TotalSupply     string `json:"total_supply"`
	PendingRequests int    `json:"pending_requests"`

	AsOfSequence int64 `json:"as_of_sequence"`
}

// InstrumentResponse is one instrument's pool record for API queries.
type InstrumentResponse struct {
	Market string `json:"market"`
	Ticker string `json:"ticker"`

	AllocationWeight int `json:"allocation_weight"`

	LongOpenInterestUsd  string `json:"long_oi_usd"`
	ShortOpenInterestUsd string `json:"short_oi_usd"`

	LongAvgEntryPriceUsd  string `json:"long_avg_entry_usd"`
	ShortAvgEntryPriceUsd string `json:"short_avg_entry_usd"`

	FundingRate       string `json:"funding_rate"`
	FundingVelocity   string `json:"funding_velocity"`
	FundingAccruedUsd string `json:"funding_accrued_usd"`

	LongBorrowingRate  string `json:"long_borrowing_rate"`
	ShortBorrowingRate string `json:"short_borrowing_rate"`
	LongBorrowFee      string `json:"long_borrow_fee"`
	ShortBorrowFee     string `json:"short_borrow_fee"`

	ImpactPoolUsd string `json:"impact_pool_usd"`

	LastUpdate   int64 `json:"last_update"`
	AsOfSequence int64 `json:"as_of_sequence"`
}

// RateHistoryResponse is one point on the funding/borrowing timeline.
type RateHistoryResponse struct {
	Market   string `json:"market"`
	Ticker   string `json:"ticker"`
	Sequence int64  `json:"sequence"`

	FundingRate        string `json:"funding_rate"`
	FundingVelocity    string `json:"funding_velocity"`
	LongBorrowingRate  string `json:"long_borrowing_rate"`
	ShortBorrowingRate string `json:"short_borrowing_rate"`

	LongOpenInterestUsd  string `json:"long_oi_usd"`
	ShortOpenInterestUsd string `json:"short_oi_usd"`

	Timestamp time.Time `json:"timestamp"`
}

// EventResponse is one event log row for API queries.
type EventResponse struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	Market         string          `json:"market"`
	Payload        json.RawMessage `json:"payload"`
	StateHash      string          `json:"state_hash"` // hex
	PrevHash       string          `json:"prev_hash"`  // hex
	Timestamp      time.Time       `json:"timestamp"`
	SourceSequence int64           `json:"source_sequence"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	LatestSequence  int64   `json:"latest_sequence"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
}
