package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{
		MaxPositionPct:  0.10,
		MaxDailyLossPct: 0.05,
		MaxDrawdownPct:  0.20,
		CooldownMs:      60_000,
		MaxTradesPerDay: 20,
	}
}

func view(position, entry, equity, realized float64) StateView {
	return StateView{
		Position:    position,
		EntryPrice:  entry,
		Equity:      equity,
		EquityPeak:  equity,
		RealizedPnL: realized,
	}
}

func TestHaltedForcesHold(t *testing.T) {
	g := NewGuard(testConfig())
	g.SetHalted()

	got := g.Apply(view(0, 0, 10_000, 0), Buy(0.1), 1000, 50_000, 1.0)
	assert.Equal(t, ActionHold, got.Kind)

	// Close still reduces risk while halted.
	got = g.Apply(view(1, 50_000, 10_000, 0), Close(), 1000, 50_000, 1.0)
	assert.Equal(t, ActionClose, got.Kind)

	g.ClearHalt()
	got = g.Apply(view(0, 0, 10_000, 0), Buy(0.1), 1000, 50_000, 1.0)
	assert.Equal(t, ActionBuy, got.Kind)
}

func TestCooldownAfterLoss(t *testing.T) {
	g := NewGuard(testConfig())
	v := view(0, 0, 10_000, -100)
	v.LastLossTs = 950_000

	// 50s after the loss, cooldown is 60s.
	got := g.Apply(v, Buy(0.1), 1_000_000, 50_000, 1.0)
	assert.Equal(t, ActionHold, got.Kind)

	// Past the cooldown.
	got = g.Apply(v, Buy(0.1), 1_011_000, 50_000, 1.0)
	assert.Equal(t, ActionBuy, got.Kind)
}

func TestUnrealizedLossTriggersClose(t *testing.T) {
	g := NewGuard(testConfig())
	// Long 0.1 at 50000 with 10000 equity. At mark 45000 the
	// unrealized loss is 500, which is 5% of equity.
	got := g.Apply(view(0.1, 50_000, 10_000, 0), Hold(), 1000, 45_000, 1.0)
	assert.Equal(t, ActionClose, got.Kind)
}

func TestRealizedPlusUnrealizedTriggersClose(t *testing.T) {
	g := NewGuard(testConfig())
	// 200 realized loss plus 300 unrealized is exactly the 5% limit.
	got := g.Apply(view(0.1, 50_000, 10_000, -200), Buy(0.01), 1000, 47_000, 1.0)
	assert.Equal(t, ActionClose, got.Kind)
}

func TestUnrealizedGainOffsetsRealizedLoss(t *testing.T) {
	g := NewGuard(testConfig())
	got := g.Apply(view(0.01, 50_000, 100_000, -300), Buy(0.001), 1000, 50_500, 1.0)
	assert.Equal(t, ActionBuy, got.Kind)
}

func TestShortPositionUnrealizedLoss(t *testing.T) {
	g := NewGuard(testConfig())
	// Short 0.1 at 50000; mark 55000 is a 500 loss on 10000 equity.
	got := g.Apply(view(-0.1, 50_000, 10_000, 0), Hold(), 1000, 55_000, 1.0)
	assert.Equal(t, ActionClose, got.Kind)
}

func TestExposureLimitBlocksNewPositions(t *testing.T) {
	g := NewGuard(testConfig())
	// 1.5 units at 1000 on 10000 equity is 15% exposure, over the 10% cap.
	v := view(1.5, 1000, 10_000, 0)

	got := g.Apply(v, Buy(0.5), 1000, 1000, 1.0)
	assert.Equal(t, ActionHold, got.Kind)

	// Risk-reducing actions stay allowed.
	got = g.Apply(v, Sell(0.5), 1000, 1000, 1.0)
	assert.Equal(t, ActionSell, got.Kind)
	got = g.Apply(v, Close(), 1000, 1000, 1.0)
	assert.Equal(t, ActionClose, got.Kind)
}

func TestShortCoverAllowedWhenOverexposed(t *testing.T) {
	g := NewGuard(testConfig())
	v := view(-1.5, 1000, 10_000, 0)
	got := g.Apply(v, Buy(0.5), 1000, 1000, 1.0)
	assert.Equal(t, ActionBuy, got.Kind)
}

func TestTradesPerDayLimit(t *testing.T) {
	g := NewGuard(testConfig())
	v := view(1.0, 1000, 100_000, 0)
	v.TradesToday = 20

	got := g.Apply(v, Buy(0.1), 1000, 1000, 1.0)
	assert.Equal(t, ActionHold, got.Kind)
	got = g.Apply(v, Sell(0.1), 1000, 1000, 1.0)
	assert.Equal(t, ActionSell, got.Kind, "reducing a long should stay allowed")
}

func TestDrawdownLatchesHalt(t *testing.T) {
	g := NewGuard(testConfig())
	v := view(0, 0, 7_900, 0)
	v.EquityPeak = 10_000 // 21% drawdown

	got := g.Apply(v, Buy(0.1), 1000, 1000, 1.0)
	assert.Equal(t, ActionHold, got.Kind)
	assert.True(t, g.Halted(), "drawdown breach must latch the halt flag")

	// Subsequent actions hold even at recovered equity.
	got = g.Apply(view(0, 0, 10_000, 0), Buy(0.1), 2000, 1000, 1.0)
	assert.Equal(t, ActionHold, got.Kind)
}

func TestDriftMultiplierScalesBeforeLimits(t *testing.T) {
	g := NewGuard(testConfig())
	v := view(0, 0, 10_000, 0)

	got := g.Apply(v, Buy(1.0), 1000, 1000, 0.5)
	assert.Equal(t, ActionBuy, got.Kind)
	assert.InDelta(t, 0.5, got.Qty, 1e-12)

	// A zero multiplier zeroes the size, which downgrades to Hold.
	got = g.Apply(v, Buy(1.0), 1000, 1000, 0.0)
	assert.Equal(t, ActionHold, got.Kind)
}

func TestKillSwitch(t *testing.T) {
	cfg := testConfig()
	cfg.KillSwitch = true
	g := NewGuard(cfg)

	got := g.Apply(view(0, 0, 10_000, 0), Buy(0.1), 1000, 1000, 1.0)
	assert.Equal(t, ActionHold, got.Kind)
}
