package projection

import (
	"context"
	"database/sql"
	"encoding/json"

	"VaultLedger/internal/core"
	"VaultLedger/internal/event"
	"VaultLedger/internal/pool"
)

// upsertInstrumentState keeps the latest per-instrument pool record.
func upsertInstrumentState(ctx context.Context, tx *sql.Tx, market string, seq int64, in *pool.Instrument) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.instrument_state
			(market, ticker, allocation_weight,
			 long_oi_usd, short_oi_usd,
			 long_avg_entry_usd, short_avg_entry_usd,
			 funding_rate, funding_velocity, funding_accrued_usd,
			 long_borrowing_rate, short_borrowing_rate,
			 long_borrow_fee, short_borrow_fee,
			 impact_pool_usd, last_update, last_sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (market, ticker) DO UPDATE SET
			allocation_weight    = $3,
			long_oi_usd          = $4,
			short_oi_usd         = $5,
			long_avg_entry_usd   = $6,
			short_avg_entry_usd  = $7,
			funding_rate         = $8,
			funding_velocity     = $9,
			funding_accrued_usd  = $10,
			long_borrowing_rate  = $11,
			short_borrowing_rate = $12,
			long_borrow_fee      = $13,
			short_borrow_fee     = $14,
			impact_pool_usd      = $15,
			last_update          = $16,
			last_sequence        = $17
	`,
		market, in.Config.Ticker, int(in.AllocationWeight),
		in.LongOpenInterestUsd.String(), in.ShortOpenInterestUsd.String(),
		in.Cumulatives.LongAvgEntryPriceUsd.String(), in.Cumulatives.ShortAvgEntryPriceUsd.String(),
		in.FundingRate.String(), in.FundingRateVelocity.String(), in.FundingAccruedUsd.String(),
		in.LongBorrowingRate.String(), in.ShortBorrowingRate.String(),
		in.Cumulatives.LongBorrowFee.String(), in.Cumulatives.ShortBorrowFee.String(),
		in.ImpactPoolUsd.String(), in.LastUpdate, seq,
	)
	return err
}

// upsertVaultSummary keeps the latest vault ledger figures per market.
func upsertVaultSummary(ctx context.Context, tx *sql.Tx, market string, seq int64, v *core.VaultSummary) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.vault_summary
			(market, long_balance, long_reserved, long_fees,
			 short_balance, short_reserved, short_fees,
			 total_supply, pending_requests, last_sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (market) DO UPDATE SET
			long_balance     = $2,
			long_reserved    = $3,
			long_fees        = $4,
			short_balance    = $5,
			short_reserved   = $6,
			short_fees       = $7,
			total_supply     = $8,
			pending_requests = $9,
			last_sequence    = $10
	`,
		market, v.LongBalance.String(), v.LongReserved.String(), v.LongFees.String(),
		v.ShortBalance.String(), v.ShortReserved.String(), v.ShortFees.String(),
		v.TotalSupply.String(), v.PendingRequests, seq,
	)
	return err
}

// appendRateHistory records the traded instrument's rates after each trade,
// giving a queryable funding/borrowing timeline. Non-trade events don't
// move rates, so they append nothing.
func appendRateHistory(ctx context.Context, tx *sql.Tx, output core.Output) error {
	env := output.Envelope
	if env.EventType != event.TypeTradeExecuted {
		return nil
	}

	// The payload carries the affected ticker; only that instrument's rates
	// changed under this event.
	var payload struct {
		Ticker string `json:"Ticker"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return err
	}

	var traded *pool.Instrument
	for _, in := range output.Instruments {
		if in.Config.Ticker == payload.Ticker {
			traded = in
			break
		}
	}
	if traded == nil {
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.rate_history
			(market, ticker, sequence,
			 funding_rate, funding_velocity,
			 long_borrowing_rate, short_borrowing_rate,
			 long_oi_usd, short_oi_usd, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (sequence) DO NOTHING
	`,
		env.Market, traded.Config.Ticker, env.Sequence,
		traded.FundingRate.String(), traded.FundingRateVelocity.String(),
		traded.LongBorrowingRate.String(), traded.ShortBorrowingRate.String(),
		traded.LongOpenInterestUsd.String(), traded.ShortOpenInterestUsd.String(),
		env.Timestamp,
	)
	return err
}
