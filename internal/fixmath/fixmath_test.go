package fixmath_test

import (
	"errors"
	"math/big"
	"testing"

	"VaultLedger/internal/fixmath"
)

func TestNewUsd_WadScale(t *testing.T) {
	v := fixmath.NewUsd(5)
	want, _ := new(big.Int).SetString("5000000000000000000", 10)
	if v.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", v, want)
	}
}

func TestMulDiv_Truncates(t *testing.T) {
	got, err := fixmath.MulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	if err != nil {
		t.Fatal(err)
	}
	if got.Int64() != 10 { // 21/2 truncated
		t.Errorf("got %d, want 10", got.Int64())
	}
}

func TestMulDiv_DivisionByZero(t *testing.T) {
	_, err := fixmath.MulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0))
	if !errors.Is(err, fixmath.ErrDivisionByZero) {
		t.Errorf("got %v, want ErrDivisionByZero", err)
	}
}

func TestWadMul_Identity(t *testing.T) {
	v := fixmath.NewUsd(42)
	got := fixmath.WadMul(v, fixmath.Wad)
	if got.Cmp(v) != 0 {
		t.Errorf("x * 1.0 should be x, got %s", got)
	}
}

func TestWadDiv_Inverse(t *testing.T) {
	a := fixmath.NewUsd(100)
	b := fixmath.NewUsd(4)
	got, err := fixmath.WadDiv(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cmp(fixmath.NewUsd(25)) != 0 {
		t.Errorf("100/4 = %s, want 25e18", got)
	}
}

func TestPercentOf(t *testing.T) {
	v := fixmath.NewUsd(1_000_000)
	got := fixmath.PercentOf(v, 30) // 30 bps
	if got.Cmp(fixmath.NewUsd(3_000)) != 0 {
		t.Errorf("30bps of 1M = %s, want 3000e18", got)
	}
}

func TestClampAbs(t *testing.T) {
	bound := fixmath.NewUsd(10)
	if got := fixmath.ClampAbs(fixmath.NewUsd(15), bound); got.Cmp(bound) != 0 {
		t.Errorf("15 clamped to +-10 = %s", got)
	}
	if got := fixmath.ClampAbs(fixmath.NewUsd(-15), bound); got.Cmp(fixmath.Neg(bound)) != 0 {
		t.Errorf("-15 clamped to +-10 = %s", got)
	}
	if got := fixmath.ClampAbs(fixmath.NewUsd(-3), bound); got.Cmp(fixmath.NewUsd(-3)) != 0 {
		t.Errorf("-3 clamped to +-10 = %s", got)
	}
}

func TestExpWad(t *testing.T) {
	half := new(big.Int).Quo(fixmath.Wad, big.NewInt(2))
	got := fixmath.ExpWad(half, 2)
	quarter := new(big.Int).Quo(fixmath.Wad, big.NewInt(4))
	if got.Cmp(quarter) != 0 {
		t.Errorf("0.5^2 = %s, want 0.25 wad", got)
	}
	if got := fixmath.ExpWad(half, 0); got.Cmp(fixmath.Wad) != 0 {
		t.Errorf("x^0 = %s, want 1 wad", got)
	}
}

func TestUsdFromTokens_RoundTrip(t *testing.T) {
	baseUnit := fixmath.Exp10(6) // 6-decimal token
	amount := big.NewInt(1_000_000_000_000) // 1,000,000 tokens
	price := fixmath.Wad                    // 1.0 USD

	usd, err := fixmath.UsdFromTokens(amount, price, baseUnit)
	if err != nil {
		t.Fatal(err)
	}
	if usd.Cmp(fixmath.NewUsd(1_000_000)) != 0 {
		t.Errorf("usd = %s, want 1M wad", usd)
	}

	back, err := fixmath.TokensFromUsd(usd, price, baseUnit)
	if err != nil {
		t.Fatal(err)
	}
	if back.Cmp(amount) != 0 {
		t.Errorf("round trip = %s, want %s", back, amount)
	}
}

func TestTokensFromUsd_ZeroPrice(t *testing.T) {
	_, err := fixmath.TokensFromUsd(fixmath.NewUsd(1), big.NewInt(0), fixmath.Wad)
	if !errors.Is(err, fixmath.ErrDivisionByZero) {
		t.Errorf("got %v, want ErrDivisionByZero", err)
	}
}

func TestPerInterval(t *testing.T) {
	rate := fixmath.NewUsd(2) // 2.0/day
	got := fixmath.PerInterval(rate, fixmath.SecondsPerDay/2)
	if got.Cmp(fixmath.NewUsd(1)) != 0 {
		t.Errorf("half a day of 2/day = %s, want 1 wad", got)
	}
	if got := fixmath.PerInterval(rate, 0); got.Sign() != 0 {
		t.Errorf("zero elapsed should accrue nothing, got %s", got)
	}
}

func TestToInt64_Overflow(t *testing.T) {
	huge := new(big.Int).Lsh(fixmath.Wad, 70)
	if _, err := fixmath.ToInt64(huge); !errors.Is(err, fixmath.ErrOverflow) {
		t.Errorf("got %v, want ErrOverflow", err)
	}
	if v, err := fixmath.ToInt64(fixmath.NewUsd(0)); err != nil || v != 0 {
		t.Errorf("zero should convert cleanly, got %d, %v", v, err)
	}
}

func TestToUint64_Negative(t *testing.T) {
	if _, err := fixmath.ToUint64(fixmath.NewUsd(-1)); !errors.Is(err, fixmath.ErrNegativeValue) {
		t.Errorf("got %v, want ErrNegativeValue", err)
	}
}
