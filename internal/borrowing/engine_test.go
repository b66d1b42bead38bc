package borrowing_test

import (
	"math/big"
	"testing"

	"VaultLedger/internal/borrowing"
	"VaultLedger/internal/fixmath"
)

func testConfig() borrowing.Config {
	return borrowing.Config{
		Factor:   fixmath.PercentOf(fixmath.Wad, 100), // 0.01/day at full utilization
		Exponent: 1,
	}
}

func freshSide() borrowing.Side {
	return borrowing.Side{
		Rate:       big.NewInt(0),
		Cumulative: big.NewInt(0),
		LastUpdate: 0,
	}
}

func TestUpdate_RateLinearInUtilization(t *testing.T) {
	cfg := testConfig()
	oi := fixmath.NewUsd(250_000)
	maxOi := fixmath.NewUsd(1_000_000)

	res := borrowing.Update(cfg, freshSide(), oi, maxOi, true, 1)

	want := fixmath.PercentOf(cfg.Factor, 2_500) // 25% utilization
	if res.Rate.Cmp(want) != 0 {
		t.Errorf("rate = %s, want %s", res.Rate, want)
	}
}

func TestUpdate_RateQuadraticExponent(t *testing.T) {
	cfg := testConfig()
	cfg.Exponent = 2
	oi := fixmath.NewUsd(500_000)
	maxOi := fixmath.NewUsd(1_000_000)

	res := borrowing.Update(cfg, freshSide(), oi, maxOi, true, 1)

	want := fixmath.PercentOf(cfg.Factor, 2_500) // 0.5^2
	if res.Rate.Cmp(want) != 0 {
		t.Errorf("rate = %s, want %s", res.Rate, want)
	}
}

func TestUpdate_UtilizationCapped(t *testing.T) {
	cfg := testConfig()
	res := borrowing.Update(cfg, freshSide(), fixmath.NewUsd(2_000_000), fixmath.NewUsd(1_000_000), true, 1)
	if res.Rate.Cmp(cfg.Factor) != 0 {
		t.Errorf("rate above 100%% utilization = %s, want cap at factor %s", res.Rate, cfg.Factor)
	}
}

func TestUpdate_ZeroCapacityWithExposure(t *testing.T) {
	cfg := testConfig()
	res := borrowing.Update(cfg, freshSide(), fixmath.NewUsd(100), big.NewInt(0), true, 1)
	if res.Rate.Cmp(cfg.Factor) != 0 {
		t.Errorf("exposure with no capacity should charge full factor, got %s", res.Rate)
	}
}

func TestUpdate_CumulativeUsesPreIntervalRate(t *testing.T) {
	cfg := testConfig()
	st := borrowing.Side{
		Rate:       fixmath.PercentOf(fixmath.Wad, 200), // 0.02/day
		Cumulative: fixmath.PercentOf(fixmath.Wad, 50),
		LastUpdate: 0,
	}

	res := borrowing.Update(cfg, st, big.NewInt(0), fixmath.NewUsd(1), true, fixmath.SecondsPerDay/2)

	// Half a day at 0.02/day adds 0.01, regardless of the new (zero) rate.
	want := fixmath.Add(st.Cumulative, fixmath.PercentOf(fixmath.Wad, 100))
	if res.Cumulative.Cmp(want) != 0 {
		t.Errorf("cumulative = %s, want %s", res.Cumulative, want)
	}
}

func TestUpdate_CumulativeMonotone(t *testing.T) {
	cfg := testConfig()
	st := freshSide()
	maxOi := fixmath.NewUsd(1_000_000)

	now := int64(0)
	prev := fixmath.Copy(st.Cumulative)
	sizes := []int64{100_000, 700_000, 50_000, 0, 900_000}
	for _, size := range sizes {
		now += 3_600
		res := borrowing.Update(cfg, st, fixmath.NewUsd(size), maxOi, true, now)
		if res.Cumulative.Cmp(prev) < 0 {
			t.Fatalf("cumulative decreased: %s -> %s", prev, res.Cumulative)
		}
		prev = fixmath.Copy(res.Cumulative)
		st = borrowing.Side{Rate: res.Rate, Cumulative: res.Cumulative, LastUpdate: now}
	}
}

func TestUpdate_UnchargedSideRateZero(t *testing.T) {
	cfg := testConfig()
	st := borrowing.Side{
		Rate:       fixmath.PercentOf(fixmath.Wad, 100),
		Cumulative: big.NewInt(0),
		LastUpdate: 0,
	}

	res := borrowing.Update(cfg, st, fixmath.NewUsd(500_000), fixmath.NewUsd(1_000_000), false, fixmath.SecondsPerDay)

	if res.Rate.Sign() != 0 {
		t.Errorf("uncharged side should carry zero rate, got %s", res.Rate)
	}
	// The old rate still accrues over the elapsed interval.
	if res.Cumulative.Cmp(fixmath.PercentOf(fixmath.Wad, 100)) != 0 {
		t.Errorf("cumulative = %s, want old rate accrued for one day", res.Cumulative)
	}
}

func TestChargedSides(t *testing.T) {
	cfg := testConfig()
	long := fixmath.NewUsd(600_000)
	short := fixmath.NewUsd(400_000)

	chargeLong, chargeShort := borrowing.ChargedSides(cfg, long, short)
	if !chargeLong || chargeShort {
		t.Errorf("larger side should be charged: long=%v short=%v", chargeLong, chargeShort)
	}

	cfg.FeeForSmallerSide = true
	chargeLong, chargeShort = borrowing.ChargedSides(cfg, long, short)
	if chargeLong || !chargeShort {
		t.Errorf("FeeForSmallerSide should flip the charge: long=%v short=%v", chargeLong, chargeShort)
	}

	chargeLong, chargeShort = borrowing.ChargedSides(cfg, long, long)
	if !chargeLong || !chargeShort {
		t.Errorf("ties charge both sides: long=%v short=%v", chargeLong, chargeShort)
	}
}

func TestNextAverageCumulative_Increase(t *testing.T) {
	prevAvg := fixmath.PercentOf(fixmath.Wad, 100)    // 0.01
	current := fixmath.PercentOf(fixmath.Wad, 300)    // 0.03
	prevSize := fixmath.NewUsd(1_000)
	delta := fixmath.NewUsd(1_000)

	got := borrowing.NextAverageCumulative(prevAvg, prevSize, current, delta, true)

	// Equal sizes average the two cumulatives: 0.02.
	want := fixmath.PercentOf(fixmath.Wad, 200)
	if got.Cmp(want) != 0 {
		t.Errorf("average = %s, want %s", got, want)
	}
}

func TestNextAverageCumulative_FirstEntry(t *testing.T) {
	current := fixmath.PercentOf(fixmath.Wad, 700)
	got := borrowing.NextAverageCumulative(big.NewInt(0), big.NewInt(0), current, fixmath.NewUsd(500), true)
	if got.Cmp(current) != 0 {
		t.Errorf("first entrant's average should equal current cumulative: got %s, want %s", got, current)
	}
}

func TestNextAverageCumulative_DecreaseUnchanged(t *testing.T) {
	prevAvg := fixmath.PercentOf(fixmath.Wad, 150)
	got := borrowing.NextAverageCumulative(prevAvg, fixmath.NewUsd(1_000), fixmath.PercentOf(fixmath.Wad, 900), fixmath.NewUsd(400), false)
	if got.Cmp(prevAvg) != 0 {
		t.Errorf("partial decrease must not move the average: got %s, want %s", got, prevAvg)
	}
}

func TestNextAverageCumulative_FullCloseResets(t *testing.T) {
	got := borrowing.NextAverageCumulative(fixmath.PercentOf(fixmath.Wad, 150), fixmath.NewUsd(1_000), fixmath.Wad, fixmath.NewUsd(1_000), false)
	if got.Sign() != 0 {
		t.Errorf("full close should reset the average to zero, got %s", got)
	}
}

func TestPendingFeesUsd(t *testing.T) {
	cumulative := fixmath.PercentOf(fixmath.Wad, 300)
	entry := fixmath.PercentOf(fixmath.Wad, 100)
	oi := fixmath.NewUsd(1_000_000)

	got := borrowing.PendingFeesUsd(cumulative, entry, oi)
	want := fixmath.NewUsd(20_000) // 2% of 1M
	if got.Cmp(want) != 0 {
		t.Errorf("pending fees = %s, want %s", got, want)
	}

	if got := borrowing.PendingFeesUsd(entry, cumulative, oi); got.Sign() != 0 {
		t.Errorf("entry above cumulative owes nothing, got %s", got)
	}
}
