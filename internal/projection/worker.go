package projection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"VaultLedger/internal/core"
	"VaultLedger/internal/fixmath"
	"VaultLedger/internal/observability"
)

// ProjectionWorker updates read-side tables and Prometheus gauges from
// applied events. The projection channel is non-blocking with drop: if this
// worker falls behind, the core keeps going and projections are rebuilt
// from the event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan core.Output
	metrics   *observability.Metrics
	log       zerolog.Logger
	lastSeq   int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan core.Output, metrics *observability.Metrics) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
		log:       observability.NewLogger("projection"),
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.processOutput(ctx, output); err != nil {
				// Projections are eventually consistent; a failed update is
				// recovered by rebuild, not by stalling the pipeline.
				pw.log.Warn().
					Err(err).
					Int64("sequence", output.Envelope.Sequence).
					Msg("projection update failed")
			}

			pw.updateGauges(output)
			pw.lastSeq = output.Envelope.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output core.Output) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	env := output.Envelope

	for _, in := range output.Instruments {
		if err := upsertInstrumentState(ctx, tx, env.Market, env.Sequence, in); err != nil {
			return fmt.Errorf("instrument state: %w", err)
		}
	}

	if output.Vault != nil {
		if err := upsertVaultSummary(ctx, tx, env.Market, env.Sequence, output.Vault); err != nil {
			return fmt.Errorf("vault summary: %w", err)
		}
	}

	if err := appendRateHistory(ctx, tx, output); err != nil {
		return fmt.Errorf("rate history: %w", err)
	}

	// Projection watermark
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, env.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// updateGauges mirrors the applied state into Prometheus. Conversions to
// float64 lose precision; gauges are for dashboards, never accounting.
func (pw *ProjectionWorker) updateGauges(output core.Output) {
	if pw.metrics == nil {
		return
	}

	for _, in := range output.Instruments {
		ticker := in.Config.Ticker
		pw.metrics.FundingRate.WithLabelValues(ticker).Set(fixmath.Float64(in.FundingRate))
		pw.metrics.FundingVelocity.WithLabelValues(ticker).Set(fixmath.Float64(in.FundingRateVelocity))
		pw.metrics.BorrowingRate.WithLabelValues(ticker, "long").Set(fixmath.Float64(in.LongBorrowingRate))
		pw.metrics.BorrowingRate.WithLabelValues(ticker, "short").Set(fixmath.Float64(in.ShortBorrowingRate))
		pw.metrics.OpenInterestUsd.WithLabelValues(ticker, "long").Set(fixmath.Float64(in.LongOpenInterestUsd))
		pw.metrics.OpenInterestUsd.WithLabelValues(ticker, "short").Set(fixmath.Float64(in.ShortOpenInterestUsd))
		pw.metrics.AllocationWeight.WithLabelValues(ticker).Set(float64(in.AllocationWeight))
		pw.metrics.ImpactPoolUsd.WithLabelValues(ticker).Set(fixmath.Float64(in.ImpactPoolUsd))
	}

	if v := output.Vault; v != nil {
		pw.metrics.VaultTotalSupply.Set(fixmath.Float64(v.TotalSupply))
		pw.metrics.VaultBalance.WithLabelValues("long").Set(fixmath.Float64(v.LongBalance))
		pw.metrics.VaultBalance.WithLabelValues("short").Set(fixmath.Float64(v.ShortBalance))
		pw.metrics.VaultReserved.WithLabelValues("long").Set(fixmath.Float64(v.LongReserved))
		pw.metrics.VaultReserved.WithLabelValues("short").Set(fixmath.Float64(v.ShortReserved))
		pw.metrics.VaultFeePot.WithLabelValues("long").Set(fixmath.Float64(v.LongFees))
		pw.metrics.VaultFeePot.WithLabelValues("short").Set(fixmath.Float64(v.ShortFees))
		pw.metrics.RequestsPending.Set(float64(v.PendingRequests))
	}
}

// RebuildProjections repopulates the read-side tables from the event log.
// The vault summary rebuilds directly from vault_log.vault_state; the
// instrument tables repopulate as the core replays events on restart.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	log := observability.NewLogger("projection")

	truncateStatements := []string{
		`TRUNCATE projections.instrument_state`,
		`TRUNCATE projections.vault_summary`,
		`TRUNCATE projections.rate_history`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.vault_summary
			(market, long_balance, long_reserved, long_fees,
			 short_balance, short_reserved, short_fees,
			 total_supply, pending_requests, last_sequence)
		SELECT DISTINCT ON (market)
			market, long_balance, long_reserved, long_fees,
			short_balance, short_reserved, short_fees,
			total_supply, pending_requests, sequence
		FROM vault_log.vault_state
		ORDER BY market, sequence DESC
	`)
	if err != nil {
		return fmt.Errorf("rebuild vault summary: %w", err)
	}

	log.Info().Msg("projection rebuild complete")
	return nil
}
