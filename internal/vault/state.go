package vault

import (
	"math/big"

	"VaultLedger/internal/fixmath"
)

// SideState is the serializable form of one collateral side's book.
type SideState struct {
	Balance         *big.Int
	Reserved        *big.Int
	AccumulatedFees *big.Int
	ReservedBy      map[string]*big.Int
	CollateralOf    map[string]*big.Int
}

// LedgerState is the serializable form of the whole vault ledger, captured
// for snapshots and loaded on warm restart before event replay.
type LedgerState struct {
	Long        SideState
	Short       SideState
	TotalSupply *big.Int
	Holdings    map[string]*big.Int
}

// ExportLedger returns a deep copy of the vault's ledger state.
func (e *Engine) ExportLedger() *LedgerState {
	return &LedgerState{
		Long:        exportSide(&e.long),
		Short:       exportSide(&e.short),
		TotalSupply: fixmath.Copy(e.totalSupply),
		Holdings:    copyAmounts(e.holdings),
	}
}

// RestoreLedger replaces the vault's ledger state.
func (e *Engine) RestoreLedger(st *LedgerState) {
	e.long = restoreSide(st.Long)
	e.short = restoreSide(st.Short)
	e.totalSupply = fixmath.Copy(st.TotalSupply)
	e.holdings = copyAmounts(st.Holdings)
}

func exportSide(s *sideLedger) SideState {
	return SideState{
		Balance:         fixmath.Copy(s.Balance),
		Reserved:        fixmath.Copy(s.Reserved),
		AccumulatedFees: fixmath.Copy(s.AccumulatedFees),
		ReservedBy:      copyAmounts(s.reservedBy),
		CollateralOf:    copyAmounts(s.collateralOf),
	}
}

func restoreSide(st SideState) sideLedger {
	return sideLedger{
		Balance:         fixmath.Copy(st.Balance),
		Reserved:        fixmath.Copy(st.Reserved),
		AccumulatedFees: fixmath.Copy(st.AccumulatedFees),
		reservedBy:      copyAmounts(st.ReservedBy),
		collateralOf:    copyAmounts(st.CollateralOf),
	}
}

func copyAmounts(m map[string]*big.Int) map[string]*big.Int {
	out := make(map[string]*big.Int, len(m))
	for k, v := range m {
		out[k] = fixmath.Copy(v)
	}
	return out
}
