package event

import (
	"fmt"
	"math/big"
	"time"
)

// PriceUpdate carries a bid/ask pair for one ticker from the oracle feed.
// Price updates have no upstream idempotency key; the feed may resend, and
// the oracle layer drops stale sequences. Gaps in the feed sequence are
// tolerated.
type PriceUpdate struct {
	Mkt    string
	Ticker string
	Bid    *big.Int // wad USD
	Ask    *big.Int // wad USD

	// BaseUnit is 10^tokenDecimals, sent with the first update per ticker.
	BaseUnit *big.Int

	Sequence  int64
	Timestamp time.Time
}

func (p *PriceUpdate) IdempotencyKey() string {
	return fmt.Sprintf("price:%s:%d", p.Ticker, p.Sequence)
}

func (p *PriceUpdate) EventType() Type       { return TypePriceUpdate }
func (p *PriceUpdate) Market() string        { return p.Mkt }
func (p *PriceUpdate) SourceSequence() int64 { return p.Sequence }

// NetPnlUpdate records the market's externally computed cumulative trader
// PnL, a trusted signed input to AUM.
type NetPnlUpdate struct {
	Mkt    string
	PnlUsd *big.Int // signed, wad USD

	Sequence  int64
	Timestamp time.Time
}

func (p *NetPnlUpdate) IdempotencyKey() string {
	return fmt.Sprintf("pnl:%s:%d", p.Mkt, p.Sequence)
}

func (p *NetPnlUpdate) EventType() Type       { return TypeNetPnlUpdate }
func (p *NetPnlUpdate) Market() string        { return p.Mkt }
func (p *NetPnlUpdate) SourceSequence() int64 { return p.Sequence }
