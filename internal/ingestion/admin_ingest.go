package ingestion

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"VaultLedger/internal/event"
)

// AdminIngestService provides manual event injection for operators. It is
// for low-volume admin operations, not high-throughput ingestion (NATS
// covers that). Injected events use the wall clock as both timestamp and
// source sequence, so they slot into the keeper partition only on
// quiet/test deployments.
type AdminIngestService struct {
	eventChan chan<- event.Event
}

func NewAdminIngestService(eventChan chan<- event.Event) *AdminIngestService {
	return &AdminIngestService{eventChan: eventChan}
}

// InjectPriceUpdate manually injects an oracle price for one ticker.
func (s *AdminIngestService) InjectPriceUpdate(
	ctx context.Context,
	market, ticker string,
	bid, ask *big.Int,
) error {
	if bid == nil || ask == nil || bid.Sign() <= 0 || ask.Sign() <= 0 {
		return fmt.Errorf("bid and ask must be positive")
	}
	if bid.Cmp(ask) > 0 {
		return fmt.Errorf("bid must not exceed ask")
	}

	evt := &event.PriceUpdate{
		Mkt:       market,
		Ticker:    ticker,
		Bid:       new(big.Int).Set(bid),
		Ask:       new(big.Int).Set(ask),
		Sequence:  time.Now().UnixMicro(),
		Timestamp: time.Now(),
	}

	return s.send(ctx, evt)
}

// InjectFeeCollection manually triggers a fee pot payout.
func (s *AdminIngestService) InjectFeeCollection(
	ctx context.Context,
	market string,
	isLong bool,
	recipient string,
) error {
	if recipient == "" {
		return fmt.Errorf("recipient must be set")
	}

	evt := &event.FeeCollection{
		BatchID:   uuid.New(),
		Mkt:       market,
		IsLong:    isLong,
		Recipient: recipient,
		Sequence:  time.Now().UnixMicro(),
		Timestamp: time.Now(),
	}

	return s.send(ctx, evt)
}

// InjectImpactPoolDelta manually adjusts an instrument's impact pool.
func (s *AdminIngestService) InjectImpactPoolDelta(
	ctx context.Context,
	market, ticker string,
	deltaUsd *big.Int,
) error {
	if deltaUsd == nil || deltaUsd.Sign() == 0 {
		return fmt.Errorf("delta must be non-zero")
	}

	evt := &event.ImpactPoolDelta{
		DeltaID:   uuid.New(),
		Mkt:       market,
		Ticker:    ticker,
		DeltaUsd:  new(big.Int).Set(deltaUsd),
		Sequence:  time.Now().UnixMicro(),
		Timestamp: time.Now(),
	}

	return s.send(ctx, evt)
}

func (s *AdminIngestService) send(ctx context.Context, evt event.Event) error {
	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
