package engine

import (
	"fmt"
	"sort"

	"main/internal/og"
	"main/internal/risk"
	"main/internal/schema"
)

// Config tunes the reducer. Indicator alphas shape the signal;
// thresholds and the embedded risk limits shape when it is allowed to
// act on one.
type Config struct {
	EmaFastAlpha float64 `json:"emaFastAlpha"`
	EmaSlowAlpha float64 `json:"emaSlowAlpha"`

	// EntryThreshold is the minimum mean-reversion score for a new
	// position; ExitThreshold closes when the signal flips past it.
	EntryThreshold float64 `json:"entryThreshold"`
	ExitThreshold  float64 `json:"exitThreshold"`

	// PositionSize is the base order quantity before drift scaling.
	PositionSize float64 `json:"positionSize"`

	DataStaleMs          uint64  `json:"dataStaleMs"`
	MaxSpreadPct         float64 `json:"maxSpreadPct"`
	MaxConsecutiveErrors uint32  `json:"maxConsecutiveErrors"`

	TakeProfitPct float64 `json:"takeProfitPct"`
	StopLossPct   float64 `json:"stopLossPct"`

	// WarmupCandles is the minimum candle count before signals fire.
	WarmupCandles uint64 `json:"warmupCandles"`

	Risk risk.Config `json:"risk"`
}

// DefaultConfig returns conservative defaults tuned for crypto
// perpetuals at one-minute candles.
func DefaultConfig() Config {
	return Config{
		EmaFastAlpha: 2.0 / 7.0,
		EmaSlowAlpha: 2.0 / 25.0,

		EntryThreshold: 0.3,
		ExitThreshold:  0.1,

		PositionSize: 0.001,

		DataStaleMs:          60_000,
		MaxSpreadPct:         0.005,
		MaxConsecutiveErrors: 5,

		TakeProfitPct: 0.004,
		StopLossPct:   0.003,

		WarmupCandles: 10,

		Risk: risk.Config{
			MaxPositionPct:  0.05,
			MaxDailyLossPct: 0.02,
			MaxDrawdownPct:  0.10,
			CooldownMs:      600_000,
			MaxTradesPerDay: 20,
			MinQty:          1e-6,
		},
	}
}

// Output is the result of folding one event.
type Output struct {
	Commands  []schema.Command
	StateHash uint64
}

// Reduce folds one event into the state and returns the commands it
// produced. Given the same state, event, and config it always returns
// the same output; all side effects live behind the returned commands.
func Reduce(s *State, ev schema.Event, cfg Config) Output {
	var commands []schema.Command

	if ev.Timestamp() > s.Now {
		s.Now = ev.Timestamp()
	}
	s.Seq++

	if s.Halted {
		return Output{Commands: commands, StateHash: s.Hash()}
	}

	switch e := ev.(type) {
	case schema.MarketCandle:
		commands = reduceCandle(s, e, cfg, commands)
	case schema.MarketTrade:
		sym := s.SymbolMut(e.Sym)
		sym.LastPrice = e.Price
		sym.LastTradeTs = e.Ts
	case schema.MarketFunding:
		s.SymbolMut(e.Sym).FundingRate = e.Rate
	case schema.MarketLiquidation:
		sym := s.SymbolMut(e.Sym)
		sym.LiquidationScore += e.Qty * e.Price / 100_000.0
	case schema.MarketBook:
		commands = reduceBook(s, e, cfg, commands)

	case schema.ExecAck:
		commands = reduceAck(s, e, commands)
	case schema.ExecFill:
		commands = reduceFill(s, e, cfg, commands)
	case schema.ExecPartialFill:
		commands = reducePartialFill(s, e, commands)
	case schema.ExecCancelAck:
		_, _ = s.Orders.Apply(e.ClientID, og.CancelRequest{})
	case schema.ExecReject:
		commands = reduceReject(s, e, cfg, commands)

	case schema.SysTimer:
		commands = reduceTimer(s, e, cfg, commands)
	case schema.SysReconnect:
		commands = append(commands, schema.Log{
			Level: schema.LogWarn,
			Msg:   "reconnect: " + e.Source,
		})
	case schema.SysDataStale:
		commands = haltState(s, commands, schema.HaltCause{
			Kind:      schema.HaltDataStale,
			Symbol:    e.Sym,
			StaleSecs: (e.Ts - e.LastSeen) / 1000,
		})
	case schema.SysHealth:
		if e.Status == schema.HealthCritical {
			commands = haltState(s, commands, schema.HaltCause{
				Kind:   schema.HaltManual,
				Reason: "health critical",
			})
		}
	case schema.SysHalt:
		s.Halted = true
		s.HaltReason = e.Cause.Kind.String()
		commands = append(commands, schema.CancelAll{})
	}

	return Output{Commands: commands, StateHash: s.Hash()}
}

// haltState latches the halt flag and emits the Halt command. Only the
// first cause wins; later causes on the same event are unreachable
// because Reduce short-circuits on Halted.
func haltState(s *State, commands []schema.Command, cause schema.HaltCause) []schema.Command {
	s.Halted = true
	s.HaltReason = cause.Kind.String()
	return append(commands, schema.Halt{Cause: cause})
}

func reduceCandle(s *State, e schema.MarketCandle, cfg Config, commands []schema.Command) []schema.Command {
	sym := s.SymbolMut(e.Sym)
	sym.OnCandle(e.Ts, e.Close, e.Volume, cfg.EmaFastAlpha, cfg.EmaSlowAlpha)

	s.Drift.UpdateFromMarket(sym.Volatility, sym.ReturnPct(), sym.Spread, sym.FundingRate, sym.ZMeanDeviation(), e.Ts)

	if !canTrade(s, e.Sym, cfg) {
		return commands
	}

	tag, proposed := proposeAction(s, e.Sym, cfg)
	if proposed.Kind == risk.ActionHold {
		return commands
	}

	guard := risk.NewGuard(cfg.Risk)
	view := riskView(s, e.Sym)
	final := guard.Apply(view, proposed, s.Now, sym.LastPrice, s.Drift.PositionMultiplier())
	if guard.Halted() {
		return haltState(s, commands, schema.HaltCause{
			Kind: schema.HaltMaxDrawdown,
			Pct:  cfg.Risk.MaxDrawdownPct,
		})
	}
	if final.Kind != proposed.Kind {
		commands = append(commands, schema.Log{
			Level: schema.LogDebug,
			Msg:   fmt.Sprintf("risk veto: %s -> %s %s", proposed.Kind, final.Kind, e.Sym),
		})
	}

	return placeFor(s, e.Sym, tag, final, commands)
}

func reduceBook(s *State, e schema.MarketBook, cfg Config, commands []schema.Command) []schema.Command {
	var spread float64
	if e.Bid > 0 {
		spread = (e.Ask - e.Bid) / e.Bid
	}
	sym := s.SymbolMut(e.Sym)
	sym.Spread = spread
	sym.LastPrice = (e.Bid + e.Ask) / 2

	if spread > cfg.MaxSpreadPct {
		commands = haltState(s, commands, schema.HaltCause{
			Kind:   schema.HaltWideSpread,
			Symbol: e.Sym,
			Pct:    spread,
		})
	}
	return commands
}

func reduceAck(s *State, e schema.ExecAck, commands []schema.Command) []schema.Command {
	if _, err := s.Orders.Apply(e.ClientID, og.Ack{OrderID: e.OrderID}); err != nil {
		commands = append(commands, schema.Log{
			Level: schema.LogWarn,
			Msg:   fmt.Sprintf("stray ack %s: %v", e.ClientID, err),
		})
		return commands
	}
	s.Risk.ConsecutiveErrors = 0
	return commands
}

func reduceFill(s *State, e schema.ExecFill, cfg Config, commands []schema.Command) []schema.Command {
	outcome, err := s.Orders.Apply(e.ClientID, og.Fill{FillID: e.FillID, Qty: e.Qty, Price: e.Price})
	if err != nil {
		commands = append(commands, schema.Log{
			Level: schema.LogWarn,
			Msg:   fmt.Sprintf("fill for unknown order %s dropped", e.ClientID),
		})
		return commands
	}
	if outcome != og.OutcomeApplied {
		// Duplicate fill id or a terminal order; accounting already
		// saw this quantity.
		return append(commands, schema.Log{
			Level: schema.LogDebug,
			Msg:   fmt.Sprintf("fill %s ignored (%s)", e.FillID, e.ClientID),
		})
	}

	realized := s.Portfolio.ApplyFill(e.Sym, e.Side, e.Qty, e.Price, e.Fee)

	s.Risk.LastTradeTs = e.Ts
	s.Risk.DailyPnL += realized
	s.Risk.TradesToday++
	if realized < 0 {
		s.Risk.LastLossTs = e.Ts
		s.Risk.ConsecutiveLosses++
	} else {
		s.Risk.ConsecutiveLosses = 0
	}
	s.Risk.ConsecutiveErrors = 0

	starting := s.Portfolio.Cash + s.Portfolio.RealizedPnL - s.Risk.DailyPnL
	if starting > 0 && s.Risk.DailyPnL < -starting*cfg.Risk.MaxDailyLossPct {
		commands = haltState(s, commands, schema.HaltCause{
			Kind: schema.HaltMaxDrawdown,
			Pct:  cfg.Risk.MaxDailyLossPct,
		})
	}

	return append(commands, schema.Log{
		Level: schema.LogInfo,
		Msg:   fmt.Sprintf("FILL %s %s %.6f @ %.2f pnl=%.4f", e.Sym, e.Side, e.Qty, e.Price, realized),
	})
}

func reducePartialFill(s *State, e schema.ExecPartialFill, commands []schema.Command) []schema.Command {
	outcome, err := s.Orders.Apply(e.ClientID, og.Fill{FillID: e.FillID, Qty: e.Qty, Price: e.Price})
	if err != nil || outcome != og.OutcomeApplied {
		return commands
	}
	s.Portfolio.ApplyFill(e.Sym, e.Side, e.Qty, e.Price, e.Fee)
	s.Risk.ConsecutiveErrors = 0
	return commands
}

func reduceReject(s *State, e schema.ExecReject, cfg Config, commands []schema.Command) []schema.Command {
	_, _ = s.Orders.Apply(e.ClientID, og.Reject{Reason: e.Reason})
	s.Risk.ConsecutiveErrors++

	if s.Risk.ConsecutiveErrors >= cfg.MaxConsecutiveErrors {
		commands = haltState(s, commands, schema.HaltCause{
			Kind:  schema.HaltMaxErrors,
			Count: s.Risk.ConsecutiveErrors,
		})
	}
	return commands
}

func reduceTimer(s *State, e schema.SysTimer, cfg Config, commands []schema.Command) []schema.Command {
	symbols := make([]string, 0, len(s.Symbols))
	for name := range s.Symbols {
		symbols = append(symbols, name)
	}
	sort.Strings(symbols)

	for _, name := range symbols {
		s.Symbols[name].LiquidationScore *= 0.95
	}

	for _, name := range symbols {
		sym := s.Symbols[name]
		if sym.IsStale(e.Ts, cfg.DataStaleMs) {
			return haltState(s, commands, schema.HaltCause{
				Kind:      schema.HaltDataStale,
				Symbol:    name,
				StaleSecs: (e.Ts - sym.LastTs) / 1000,
			})
		}
	}

	s.Risk.ResetDay(e.Ts / 86_400_000)

	severity := s.Drift.ComputeOverall()
	if severity.ShouldHalt() {
		commands = append(commands, schema.CancelAll{})
		return haltState(s, commands, schema.HaltCause{
			Kind:   schema.HaltManual,
			Reason: "drift " + severity.String(),
		})
	}

	return append(commands, schema.Log{
		Level: schema.LogDebug,
		Msg:   fmt.Sprintf("timer %s hash=%d drift=%s", e.Name, s.Hash(), severity),
	})
}

// canTrade gates signal generation on operational conditions. A veto
// here is silent; risk vetoes on a concrete proposal are logged.
func canTrade(s *State, symbol string, cfg Config) bool {
	if s.Halted {
		return false
	}
	if s.Drift.PositionMultiplier() == 0 {
		return false
	}
	sym, ok := s.Symbols[symbol]
	if !ok {
		return false
	}
	if sym.CandleCount < cfg.WarmupCandles {
		return false
	}
	if sym.Spread > cfg.MaxSpreadPct {
		return false
	}
	for _, o := range s.Orders.All() {
		if o.Sym == symbol && !o.State.Terminal() {
			return false
		}
	}
	return true
}

// proposeAction turns indicators into an action before risk review.
// Exits come first; most candles correctly propose nothing.
func proposeAction(s *State, symbol string, cfg Config) (string, risk.Action) {
	sym := s.Symbols[symbol]
	pos := s.Portfolio.Positions[symbol]

	if pos.Qty != 0 {
		movePct := (sym.LastPrice - pos.EntryPrice) / pos.EntryPrice
		if pos.Qty < 0 {
			movePct = -movePct
		}

		if movePct >= cfg.TakeProfitPct {
			return "tp", risk.Close()
		}
		if movePct <= -cfg.StopLossPct {
			return "sl", risk.Close()
		}

		score := sym.MeanReversionScore()
		direction := 1.0
		if pos.Qty < 0 {
			direction = -1.0
		}
		if score*direction < -cfg.ExitThreshold {
			return "rev", risk.Close()
		}
		return "", risk.Hold()
	}

	score := sym.MeanReversionScore()
	rsi := sym.RSI()
	accel := sym.MomentumAcceleration()

	// Fade exhaustion with deceleration confirmation; never chase.
	if score > cfg.EntryThreshold && rsi < 35 && accel > -0.001 {
		return "buy", risk.Buy(cfg.PositionSize)
	}
	if score < -cfg.EntryThreshold && rsi > 65 && accel < 0.001 {
		return "sell", risk.Sell(cfg.PositionSize)
	}
	return "", risk.Hold()
}

// riskView snapshots the portfolio fields the guard reads.
func riskView(s *State, symbol string) risk.StateView {
	pos := s.Portfolio.Positions[symbol]
	return risk.StateView{
		Position:    pos.Qty,
		EntryPrice:  pos.EntryPrice,
		Equity:      s.Portfolio.Equity,
		EquityPeak:  s.Portfolio.EquityPeak,
		RealizedPnL: s.Risk.DailyPnL,
		LastLossTs:  s.Risk.LastLossTs,
		TradesToday: s.Risk.TradesToday,
	}
}

// placeFor emits the PlaceOrder for a final action and registers the
// order as submitted so stray exec events dedupe against it.
func placeFor(s *State, symbol, tag string, act risk.Action, commands []schema.Command) []schema.Command {
	var side schema.TradeSide
	var qty float64

	switch act.Kind {
	case risk.ActionBuy:
		side, qty = schema.SideBuy, act.Qty
	case risk.ActionSell:
		side, qty = schema.SideSell, act.Qty
	case risk.ActionClose:
		pos := s.Portfolio.Positions[symbol]
		if pos.Qty == 0 {
			return commands
		}
		if pos.Qty > 0 {
			side = schema.SideSell
			qty = pos.Qty
		} else {
			side = schema.SideBuy
			qty = -pos.Qty
		}
	default:
		return commands
	}

	clientID := fmt.Sprintf("%s-%s-%d", tag, symbol, s.Seq)
	if _, err := s.Orders.Create(clientID, symbol, qty); err != nil {
		return commands
	}
	_, _ = s.Orders.Apply(clientID, og.Submit{})

	return append(commands, schema.PlaceOrder{
		Sym:      symbol,
		ClientID: clientID,
		Side:     side,
		Qty:      qty,
	})
}
