package risk

import (
	"math"
)

// ActionKind is a proposed trading action.
type ActionKind uint8

const (
	ActionHold ActionKind = iota
	ActionBuy
	ActionSell
	ActionClose
)

func (k ActionKind) String() string {
	switch k {
	case ActionHold:
		return "Hold"
	case ActionBuy:
		return "Buy"
	case ActionSell:
		return "Sell"
	case ActionClose:
		return "Close"
	default:
		return "Unknown"
	}
}

// Action pairs a kind with the proposed quantity. Qty is meaningful
// only for Buy and Sell.
type Action struct {
	Kind ActionKind
	Qty  float64
}

func Hold() Action              { return Action{Kind: ActionHold} }
func Buy(qty float64) Action    { return Action{Kind: ActionBuy, Qty: qty} }
func Sell(qty float64) Action   { return Action{Kind: ActionSell, Qty: qty} }
func Close() Action             { return Action{Kind: ActionClose} }

// Config defines the hard limits the guard enforces.
type Config struct {
	KillSwitch      bool    `json:"killSwitch"`
	MaxPositionPct  float64 `json:"maxPositionPct"`
	MaxDailyLossPct float64 `json:"maxDailyLossPct"`
	MaxDrawdownPct  float64 `json:"maxDrawdownPct"`
	CooldownMs      uint64  `json:"cooldownMs"`
	MaxTradesPerDay uint32  `json:"maxTradesPerDay"`
	MinQty          float64 `json:"minQty"`
}

// StateView is the portfolio snapshot the guard evaluates against.
type StateView struct {
	Position    float64
	EntryPrice  float64
	Equity      float64
	EquityPeak  float64
	RealizedPnL float64
	LastLossTs  uint64
	TradesToday uint32
}

// Guard downgrades proposed actions that would breach risk limits. A
// risk veto is a policy decision, not an error: the downgraded action
// is the expected, observable outcome.
//
// The guard is single-writer: it shares the engine's mutable state with
// the reducer but is never invoked concurrently with it.
type Guard struct {
	cfg    Config
	halted bool
}

// NewGuard creates a guard with static limits.
func NewGuard(cfg Config) *Guard {
	return &Guard{cfg: cfg}
}

// Halted reports whether a hard limit breach or Sys halt has latched.
func (g *Guard) Halted() bool {
	return g.halted
}

// SetHalted latches the halt flag; all actions downgrade to Hold (or
// Close, which reduces risk) until ClearHalt.
func (g *Guard) SetHalted() {
	g.halted = true
}

// ClearHalt releases the halt flag.
func (g *Guard) ClearHalt() {
	g.halted = false
}

// Apply evaluates a proposed action against the limits and returns the
// possibly-downgraded action. driftMultiplier scales Buy/Sell sizing
// before limit checks, so regime stress compounds with hard limits
// rather than bypassing them.
func (g *Guard) Apply(view StateView, action Action, nowTs uint64, markPrice, driftMultiplier float64) Action {
	// Drift sizing first: a throttled size must still pass every limit.
	switch action.Kind {
	case ActionBuy, ActionSell:
		action.Qty *= clampMultiplier(driftMultiplier)
		if action.Qty <= g.cfg.MinQty {
			return Hold()
		}
	}

	if g.halted || g.cfg.KillSwitch {
		return closeOrHold(action)
	}

	if g.cfg.CooldownMs > 0 && view.LastLossTs > 0 && nowTs-min64(nowTs, view.LastLossTs) < g.cfg.CooldownMs {
		return closeOrHold(action)
	}

	if g.cfg.MaxTradesPerDay > 0 && view.TradesToday >= g.cfg.MaxTradesPerDay {
		return riskReducingOnly(view, action)
	}

	// Daily loss counts realized plus mark-to-market unrealized.
	total := view.RealizedPnL + unrealizedPnL(view, markPrice)
	if total < 0 && g.cfg.MaxDailyLossPct > 0 {
		lossPct := math.Abs(total) / math.Max(view.Equity, 1)
		if lossPct >= g.cfg.MaxDailyLossPct {
			if view.Position != 0 {
				return Close()
			}
			return Hold()
		}
	}

	// Drawdown against the running equity peak latches the halt flag.
	if g.cfg.MaxDrawdownPct > 0 && view.EquityPeak > 0 {
		dd := (view.EquityPeak - view.Equity) / view.EquityPeak
		if dd >= g.cfg.MaxDrawdownPct {
			g.halted = true
			return closeOrHold(action)
		}
	}

	if g.cfg.MaxPositionPct > 0 {
		exposure := math.Abs(view.Position) * markPrice / math.Max(view.Equity, 1)
		if exposure > g.cfg.MaxPositionPct {
			return riskReducingOnly(view, action)
		}
	}

	return action
}

func closeOrHold(action Action) Action {
	if action.Kind == ActionClose {
		return action
	}
	return Hold()
}

// riskReducingOnly permits only actions that shrink the open position.
func riskReducingOnly(view StateView, action Action) Action {
	switch action.Kind {
	case ActionClose:
		return action
	case ActionSell:
		if view.Position > 0 {
			return action
		}
	case ActionBuy:
		if view.Position < 0 {
			return action
		}
	}
	return Hold()
}

func unrealizedPnL(view StateView, markPrice float64) float64 {
	if view.Position == 0 || view.EntryPrice == 0 {
		return 0
	}
	return view.Position * (markPrice - view.EntryPrice)
}

func clampMultiplier(m float64) float64 {
	if m < 0 {
		return 0
	}
	if m > 1 {
		return 1
	}
	return m
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
