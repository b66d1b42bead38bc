package core

import (
	"math/big"

	"VaultLedger/internal/fixmath"
)

// PnlBook stores the latest externally computed cumulative trader PnL per
// market. Values arrive as trusted signed inputs; the book keeps only the
// most recent one per market.
// Not thread-safe — only accessed from the single-threaded market core.
type PnlBook struct {
	byMarket map[string]*big.Int
}

func NewPnlBook() *PnlBook {
	return &PnlBook{byMarket: make(map[string]*big.Int)}
}

// Set replaces the market's cumulative net PnL.
func (b *PnlBook) Set(market string, pnlUsd *big.Int) {
	b.byMarket[market] = fixmath.Copy(pnlUsd)
}

// CumulativeNetPnl implements the vault's PnL boundary. Markets without an
// update yet report zero.
func (b *PnlBook) CumulativeNetPnl(market string) *big.Int {
	if v, ok := b.byMarket[market]; ok {
		return fixmath.Copy(v)
	}
	return big.NewInt(0)
}

// Export returns a deep copy for snapshots.
func (b *PnlBook) Export() map[string]*big.Int {
	out := make(map[string]*big.Int, len(b.byMarket))
	for market, v := range b.byMarket {
		out[market] = fixmath.Copy(v)
	}
	return out
}

// Restore replaces the book. Used on warm restart before replay.
func (b *PnlBook) Restore(values map[string]*big.Int) {
	b.byMarket = make(map[string]*big.Int, len(values))
	for market, v := range values {
		b.byMarket[market] = fixmath.Copy(v)
	}
}
