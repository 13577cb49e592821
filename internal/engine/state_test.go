package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func TestPortfolioRoundTripRealizesPnL(t *testing.T) {
	p := NewPortfolio(10_000)

	p.ApplyFill("BTCUSDT", schema.SideBuy, 0.01, 50_000, 0)
	realized := p.ApplyFill("BTCUSDT", schema.SideSell, 0.01, 51_000, 0)

	assert.InDelta(t, 10.0, realized, 1e-9)
	assert.InDelta(t, 10_010.0, p.Cash, 1e-9)
	assert.Equal(t, 0.0, p.Positions["BTCUSDT"].Qty)
	assert.InDelta(t, 10.0, p.RealizedPnL, 1e-9)
}

func TestPortfolioShortRealizesPnL(t *testing.T) {
	p := NewPortfolio(10_000)

	p.ApplyFill("ETHUSDT", schema.SideSell, 1, 3_000, 0)
	realized := p.ApplyFill("ETHUSDT", schema.SideBuy, 1, 2_900, 0)

	assert.InDelta(t, 100.0, realized, 1e-9)
	assert.Equal(t, 0.0, p.Positions["ETHUSDT"].Qty)
}

func TestPortfolioDrawdownTracksPeak(t *testing.T) {
	p := NewPortfolio(10_000)

	p.ApplyFill("BTCUSDT", schema.SideBuy, 0.01, 50_000, 0)
	p.ApplyFill("BTCUSDT", schema.SideSell, 0.01, 52_000, 0)
	peak := p.EquityPeak
	p.ApplyFill("BTCUSDT", schema.SideBuy, 0.01, 50_000, 0)
	p.ApplyFill("BTCUSDT", schema.SideSell, 0.01, 45_000, 0)

	require.Equal(t, peak, p.EquityPeak)
	assert.Greater(t, p.DrawdownPct(), 0.0)
}

func TestFeesReduceCash(t *testing.T) {
	p := NewPortfolio(1_000)
	p.ApplyFill("BTCUSDT", schema.SideBuy, 0.001, 50_000, 0.05)
	assert.InDelta(t, 1_000-50-0.05, p.Cash, 1e-9)
}

func TestRSIBounds(t *testing.T) {
	s := NewSymbolState()
	for i := 0; i < 20; i++ {
		s.OnCandle(uint64(i)*1000, 50_000+float64(i)*100, 1, 2.0/7.0, 2.0/25.0)
	}
	if rsi := s.RSI(); rsi <= 50 || rsi > 100 {
		t.Fatalf("rsi after straight rally = %.2f, want (50, 100]", rsi)
	}

	s = NewSymbolState()
	for i := 0; i < 20; i++ {
		s.OnCandle(uint64(i)*1000, 50_000-float64(i)*100, 1, 2.0/7.0, 2.0/25.0)
	}
	if rsi := s.RSI(); rsi >= 50 || rsi < 0 {
		t.Fatalf("rsi after straight selloff = %.2f, want [0, 50)", rsi)
	}
}

func TestMeanReversionScoreFadesExtremes(t *testing.T) {
	s := NewSymbolState()
	for i := 0; i < 30; i++ {
		s.OnCandle(uint64(i)*1000, 50_000-float64(i)*200, 1, 2.0/7.0, 2.0/25.0)
	}
	assert.Greater(t, s.MeanReversionScore(), 0.0, "oversold tape should lean buy")

	s = NewSymbolState()
	for i := 0; i < 30; i++ {
		s.OnCandle(uint64(i)*1000, 50_000+float64(i)*200, 1, 2.0/7.0, 2.0/25.0)
	}
	assert.Less(t, s.MeanReversionScore(), 0.0, "overbought tape should lean sell")
}

func TestVolatilityMatchesSampleStd(t *testing.T) {
	s := NewSymbolState()
	closes := []float64{100, 102, 101, 105, 99, 103}
	for i, c := range closes {
		s.OnCandle(uint64(i)*1000, c, 1, 2.0/7.0, 2.0/25.0)
	}

	mean := 0.0
	for _, c := range closes {
		mean += c
	}
	mean /= float64(len(closes))
	var m2 float64
	for _, c := range closes {
		m2 += (c - mean) * (c - mean)
	}
	want := math.Sqrt(m2 / float64(len(closes)-1))

	assert.InDelta(t, want, s.Volatility, 1e-9)
}

func TestStateHashIsDeterministic(t *testing.T) {
	build := func() *State {
		s := NewState(10_000)
		s.Portfolio.ApplyFill("BTCUSDT", schema.SideBuy, 0.01, 50_000, 0.1)
		s.Portfolio.ApplyFill("ETHUSDT", schema.SideSell, 1, 3_000, 0.1)
		s.SymbolMut("BTCUSDT").OnCandle(1000, 50_000, 1, 2.0/7.0, 2.0/25.0)
		s.Now = 1000
		s.Seq = 3
		return s
	}

	if build().Hash() != build().Hash() {
		t.Fatal("identical states must hash identically")
	}
}

func TestStateHashSeesPositionChange(t *testing.T) {
	s := NewState(10_000)
	before := s.Hash()
	s.Portfolio.ApplyFill("BTCUSDT", schema.SideBuy, 0.01, 50_000, 0)
	if s.Hash() == before {
		t.Fatal("hash unchanged after position change")
	}
}

func TestSymbolStaleness(t *testing.T) {
	s := NewSymbolState()
	s.OnCandle(1000, 50_000, 1, 2.0/7.0, 2.0/25.0)

	assert.False(t, s.IsStale(30_000, 60_000))
	assert.True(t, s.IsStale(120_000, 60_000))
}
