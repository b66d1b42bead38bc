package query

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"VaultLedger/internal/observability"
)

// QueryService provides read-only access to projection tables and the event
// log. Queries are served over HTTP/JSON, reading from Postgres only; they
// never touch the market core. All responses carry as_of_sequence for
// freshness semantics.
type QueryService struct {
	db      *sql.DB
	metrics *observability.Metrics
}

func NewQueryService(db *sql.DB, metrics *observability.Metrics) *QueryService {
	return &QueryService{db: db, metrics: metrics}
}

// GetVaultSummary returns the vault ledger figures for a market.
func (qs *QueryService) GetVaultSummary(ctx context.Context, market string) (*VaultSummaryResponse, error) {
	defer qs.observe("vault_summary", time.Now())

	var r VaultSummaryResponse
	err := qs.db.QueryRowContext(ctx, `
		SELECT market, long_balance, long_reserved, long_fees,
		       short_balance, short_reserved, short_fees,
		       total_supply, pending_requests, last_sequence
		FROM projections.vault_summary
		WHERE market = $1
	`, market).Scan(
		&r.Market, &r.LongBalance, &r.LongReserved, &r.LongFees,
		&r.ShortBalance, &r.ShortReserved, &r.ShortFees,
		&r.TotalSupply, &r.PendingRequests, &r.AsOfSequence,
	)
	if err == sql.ErrNoRows {
		return nil, qs.fail("vault_summary", fmt.Errorf("unknown market: %s", market))
	}
	if err != nil {
		return nil, qs.fail("vault_summary", err)
	}

	return &r, nil
}

// GetInstruments returns all instruments for a market, market order.
func (qs *QueryService) GetInstruments(ctx context.Context, market string) ([]InstrumentResponse, error) {
	defer qs.observe("instruments", time.Now())

	rows, err := qs.db.QueryContext(ctx, `
		SELECT market, ticker, allocation_weight,
		       long_oi_usd, short_oi_usd,
		       long_avg_entry_usd, short_avg_entry_usd,
		       funding_rate, funding_velocity, funding_accrued_usd,
		       long_borrowing_rate, short_borrowing_rate,
		       long_borrow_fee, short_borrow_fee,
		       impact_pool_usd, last_update, last_sequence
		FROM projections.instrument_state
		WHERE market = $1
		ORDER BY ticker
	`, market)
	if err != nil {
		return nil, qs.fail("instruments", err)
	}
	defer rows.Close()

	var out []InstrumentResponse
	for rows.Next() {
		var r InstrumentResponse
		if err := rows.Scan(
			&r.Market, &r.Ticker, &r.AllocationWeight,
			&r.LongOpenInterestUsd, &r.ShortOpenInterestUsd,
			&r.LongAvgEntryPriceUsd, &r.ShortAvgEntryPriceUsd,
			&r.FundingRate, &r.FundingVelocity, &r.FundingAccruedUsd,
			&r.LongBorrowingRate, &r.ShortBorrowingRate,
			&r.LongBorrowFee, &r.ShortBorrowFee,
			&r.ImpactPoolUsd, &r.LastUpdate, &r.AsOfSequence,
		); err != nil {
			return nil, qs.fail("instruments", err)
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

// GetRateHistory returns the funding/borrowing timeline for one instrument,
// newest first, with cursor-based pagination on sequence.
func (qs *QueryService) GetRateHistory(
	ctx context.Context,
	market, ticker string,
	limit int,
	beforeSequence *int64,
) ([]RateHistoryResponse, error) {
	defer qs.observe("rate_history", time.Now())

	query := `
		SELECT market, ticker, sequence,
		       funding_rate, funding_velocity,
		       long_borrowing_rate, short_borrowing_rate,
		       long_oi_usd, short_oi_usd, timestamp
		FROM projections.rate_history
		WHERE market = $1 AND ticker = $2
	`
	args := []interface{}{market, ticker}
	argIdx := 3

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, qs.fail("rate_history", err)
	}
	defer rows.Close()

	var history []RateHistoryResponse
	for rows.Next() {
		var h RateHistoryResponse
		if err := rows.Scan(
			&h.Market, &h.Ticker, &h.Sequence,
			&h.FundingRate, &h.FundingVelocity,
			&h.LongBorrowingRate, &h.ShortBorrowingRate,
			&h.LongOpenInterestUsd, &h.ShortOpenInterestUsd, &h.Timestamp,
		); err != nil {
			return nil, qs.fail("rate_history", err)
		}
		history = append(history, h)
	}

	return history, rows.Err()
}

// GetEvents returns event log rows, newest first, with cursor-based
// pagination on sequence.
func (qs *QueryService) GetEvents(
	ctx context.Context,
	market *string,
	limit int,
	beforeSequence *int64,
) ([]EventResponse, error) {
	defer qs.observe("events", time.Now())

	query := `
		SELECT sequence, event_type, idempotency_key, market, payload,
		       state_hash, prev_hash, timestamp, source_sequence
		FROM vault_log.events
		WHERE TRUE
	`
	var args []interface{}
	argIdx := 1

	if market != nil {
		query += fmt.Sprintf(" AND market = $%d", argIdx)
		args = append(args, *market)
		argIdx++
	}

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, qs.fail("events", err)
	}
	defer rows.Close()

	var events []EventResponse
	for rows.Next() {
		var e EventResponse
		var stateHash, prevHash []byte
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.Market, &e.Payload,
			&stateHash, &prevHash, &e.Timestamp, &e.SourceSequence,
		); err != nil {
			return nil, qs.fail("events", err)
		}
		e.StateHash = hex.EncodeToString(stateHash)
		e.PrevHash = hex.EncodeToString(prevHash)
		events = append(events, e)
	}

	return events, rows.Err()
}

// VerifyIntegrity checks hash chain continuity over the persisted log:
// every event's prev_hash must equal its predecessor's state_hash.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	defer qs.observe("verify_integrity", time.Now())

	report := &IntegrityReport{}

	var latest sql.NullInt64
	if err := qs.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM vault_log.events`,
	).Scan(&latest); err != nil {
		return nil, qs.fail("verify_integrity", err)
	}
	report.LatestSequence = latest.Int64

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM vault_log.events e1
		JOIN vault_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash != e2.state_hash
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, qs.fail("verify_integrity", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, qs.fail("verify_integrity", err)
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, qs.fail("verify_integrity", err)
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0
	return report, nil
}

// GetWatermark returns the projection worker's last applied sequence.
func (qs *QueryService) GetWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (qs *QueryService) observe(endpoint string, start time.Time) {
	if qs.metrics == nil {
		return
	}
	qs.metrics.QueryRequests.WithLabelValues(endpoint).Inc()
	qs.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (qs *QueryService) fail(endpoint string, err error) error {
	if qs.metrics != nil {
		qs.metrics.QueryErrors.WithLabelValues(endpoint).Inc()
	}
	return err
}
