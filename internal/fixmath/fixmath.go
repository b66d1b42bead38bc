package fixmath

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

// All USD values in the engine are scaled integers with 18 decimals ("wad").
// Token amounts are scaled by the per-asset base unit supplied by the price
// source. Arithmetic runs over big.Int so intermediate products never
// overflow; conversions back to machine integers fail explicitly instead.

const (
	// WadDecimals is the number of decimals carried by USD values.
	WadDecimals = 18

	// BasisPoints is the denominator for percentage fields (100% == 10_000).
	BasisPoints int64 = 10_000

	// SecondsPerDay is the time base for funding and borrowing rates:
	// a stored rate is "per day" and integrates as rate * elapsed / day.
	SecondsPerDay int64 = 86_400
)

var (
	// Wad is 10^18, the USD scale factor.
	Wad = Exp10(WadDecimals)

	ErrOverflow       = errors.New("fixmath: value overflows target width")
	ErrNegativeValue  = errors.New("fixmath: negative value where unsigned required")
	ErrDivisionByZero = errors.New("fixmath: division by zero")
)

// Exp10 returns 10^n as a fresh big.Int.
func Exp10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// NewUsd converts a whole-dollar amount to wad scale.
func NewUsd(dollars int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(dollars), Wad)
}

// Copy returns a detached copy of v. Engine state never aliases inputs.
func Copy(v *big.Int) *big.Int {
	return new(big.Int).Set(v)
}

// Add returns a + b.
func Add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(a, b)
}

// Sub returns a - b.
func Sub(a, b *big.Int) *big.Int {
	return new(big.Int).Sub(a, b)
}

// Neg returns -v.
func Neg(v *big.Int) *big.Int {
	return new(big.Int).Neg(v)
}

// Abs returns |v|.
func Abs(v *big.Int) *big.Int {
	return new(big.Int).Abs(v)
}

// Min returns the smaller of a and b.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return Copy(a)
	}
	return Copy(b)
}

// Max returns the larger of a and b.
func Max(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return Copy(a)
	}
	return Copy(b)
}

// MulDiv returns a * b / denom with truncating division.
// Truncation (not banker's rounding) matches the integer semantics the
// settled amounts were specified against.
func MulDiv(a, b, denom *big.Int) (*big.Int, error) {
	if denom.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	prod := new(big.Int).Mul(a, b)
	return prod.Quo(prod, denom), nil
}

// WadMul returns a * b / Wad.
func WadMul(a, b *big.Int) *big.Int {
	prod := new(big.Int).Mul(a, b)
	return prod.Quo(prod, Wad)
}

// WadDiv returns a * Wad / b.
func WadDiv(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	prod := new(big.Int).Mul(a, Wad)
	return prod.Quo(prod, b), nil
}

// PercentOf returns v * bps / BasisPoints.
func PercentOf(v *big.Int, bps int64) *big.Int {
	prod := new(big.Int).Mul(v, big.NewInt(bps))
	return prod.Quo(prod, big.NewInt(BasisPoints))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi *big.Int) *big.Int {
	if v.Cmp(lo) < 0 {
		return Copy(lo)
	}
	if v.Cmp(hi) > 0 {
		return Copy(hi)
	}
	return Copy(v)
}

// ClampAbs bounds v to [-bound, bound]. bound must be non-negative.
func ClampAbs(v, bound *big.Int) *big.Int {
	neg := new(big.Int).Neg(bound)
	return Clamp(v, neg, bound)
}

// ExpWad raises a wad-scaled base to a small integer power.
// ExpWad(x, 0) == Wad. Used for the borrowing-rate utilization curve.
func ExpWad(base *big.Int, n uint) *big.Int {
	result := Copy(Wad)
	for i := uint(0); i < n; i++ {
		result = WadMul(result, base)
	}
	return result
}

// UsdFromTokens converts a token amount to wad USD: amount * price / baseUnit.
// price is wad USD per whole token; baseUnit is 10^tokenDecimals.
func UsdFromTokens(amount, price, baseUnit *big.Int) (*big.Int, error) {
	return MulDiv(amount, price, baseUnit)
}

// TokensFromUsd converts wad USD to a token amount: usd * baseUnit / price.
func TokensFromUsd(usd, price, baseUnit *big.Int) (*big.Int, error) {
	if price.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	return MulDiv(usd, baseUnit, price)
}

// PerInterval integrates a per-day rate over elapsed seconds:
// rate * elapsed / SecondsPerDay.
func PerInterval(rate *big.Int, elapsedSeconds int64) *big.Int {
	prod := new(big.Int).Mul(rate, big.NewInt(elapsedSeconds))
	return prod.Quo(prod, big.NewInt(SecondsPerDay))
}

// ToInt64 converts v to int64, failing on overflow.
func ToInt64(v *big.Int) (int64, error) {
	if !v.IsInt64() {
		return 0, fmt.Errorf("%w: %s does not fit int64", ErrOverflow, v.String())
	}
	return v.Int64(), nil
}

// ToUint64 converts v to uint64, failing on negative values and overflow.
func ToUint64(v *big.Int) (uint64, error) {
	if v.Sign() < 0 {
		return 0, fmt.Errorf("%w: %s", ErrNegativeValue, v.String())
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s does not fit uint64", ErrOverflow, v.String())
	}
	return v.Uint64(), nil
}

// Float64 renders v at wad scale as a float for metrics and logs only.
// Never feed the result back into engine state.
func Float64(v *big.Int) float64 {
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(v),
		new(big.Float).SetInt(Wad),
	).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
