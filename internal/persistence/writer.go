package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"VaultLedger/internal/core"
	"VaultLedger/internal/event"
)

// EventLogWriter writes envelopes and vault state rows to Postgres using
// multi-row INSERT. Writes are idempotent: re-persisting a sequence after a
// crash is a no-op.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in vault_log.events.
type EventRow struct {
	Sequence       int64
	EventType      string
	IdempotencyKey string
	Market         string
	Payload        []byte // JSON-encoded event payload
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	SourceSequence int64
}

// VaultStateRow represents a row in vault_log.vault_state: the vault
// ledger's headline figures after each applied event. Amounts are stored as
// NUMERIC via their decimal-string form; they exceed int64 range.
type VaultStateRow struct {
	Sequence int64
	Market   string

	LongBalance  string
	LongReserved string
	LongFees     string

	ShortBalance  string
	ShortReserved string
	ShortFees     string

	TotalSupply     string
	PendingRequests int

	Timestamp time.Time
}

// EventRowFromEnvelope converts a log envelope into its persisted form.
func EventRowFromEnvelope(env *event.Envelope) EventRow {
	stateHash := make([]byte, len(env.StateHash))
	copy(stateHash, env.StateHash[:])
	prevHash := make([]byte, len(env.PrevHash))
	copy(prevHash, env.PrevHash[:])

	return EventRow{
		Sequence:       env.Sequence,
		EventType:      env.EventType.String(),
		IdempotencyKey: env.IdempotencyKey,
		Market:         env.Market,
		Payload:        env.Payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
		Timestamp:      env.Timestamp,
		SourceSequence: env.SourceSequence,
	}
}

// VaultStateRowFromSummary converts the core's post-event vault summary.
func VaultStateRowFromSummary(seq int64, market string, ts time.Time, v *core.VaultSummary) VaultStateRow {
	return VaultStateRow{
		Sequence:        seq,
		Market:          market,
		LongBalance:     v.LongBalance.String(),
		LongReserved:    v.LongReserved.String(),
		LongFees:        v.LongFees.String(),
		ShortBalance:    v.ShortBalance.String(),
		ShortReserved:   v.ShortReserved.String(),
		ShortFees:       v.ShortFees.String(),
		TotalSupply:     v.TotalSupply.String(),
		PendingRequests: v.PendingRequests,
		Timestamp:       ts,
	}
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of events to vault_log.events inside tx.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO vault_log.events
		(sequence, event_type, idempotency_key, market, payload, state_hash, prev_hash, timestamp, source_sequence)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*9)

	for i, e := range events {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.Sequence, e.EventType, e.IdempotencyKey, e.Market,
			e.Payload, e.StateHash, e.PrevHash, e.Timestamp, e.SourceSequence,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteVaultStateBatch writes a batch of vault state rows inside tx.
func (w *EventLogWriter) WriteVaultStateBatch(ctx context.Context, tx *sql.Tx, rows []VaultStateRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO vault_log.vault_state
		(sequence, market, long_balance, long_reserved, long_fees,
		 short_balance, short_reserved, short_fees, total_supply, pending_requests, timestamp)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*11)

	for i, r := range rows {
		base := i * 11
		placeholders := make([]string, 11)
		for k := range placeholders {
			placeholders[k] = fmt.Sprintf("$%d", base+k+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			r.Sequence, r.Market, r.LongBalance, r.LongReserved, r.LongFees,
			r.ShortBalance, r.ShortReserved, r.ShortFees, r.TotalSupply,
			r.PendingRequests, r.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
