package engine

import (
	"hash/fnv"
	"math"
	"sort"

	"main/internal/drift"
	"main/internal/og"
	"main/internal/schema"
)

// State is the complete engine state folded by Reduce. One logical
// loop owns it; components borrow it for the duration of a single
// event, never concurrently.
type State struct {
	// Now is logical time, the max event timestamp seen.
	Now schema.Timestamp
	// Seq counts reduced events.
	Seq uint64

	Symbols   map[string]*SymbolState
	Portfolio *Portfolio
	Orders    *og.StateMachine
	Risk      RiskState
	Drift     *drift.Tracker

	Halted     bool
	HaltReason string
}

// NewState creates a fresh engine state with the given starting cash.
func NewState(startingCash float64) *State {
	return &State{
		Symbols:   make(map[string]*SymbolState),
		Portfolio: NewPortfolio(startingCash),
		Orders:    og.NewStateMachine(),
		Drift:     drift.DefaultWindows(),
	}
}

// SymbolMut returns the symbol state, creating it if missing.
func (s *State) SymbolMut(symbol string) *SymbolState {
	sym, ok := s.Symbols[symbol]
	if !ok {
		sym = NewSymbolState()
		s.Symbols[symbol] = sym
	}
	return sym
}

// quantize converts a float to a stable integer for hashing. 1e8 keeps
// more precision than any tick size in play.
func quantize(v float64) uint64 {
	return uint64(int64(v * 1e8))
}

// Hash computes a deterministic digest of the state for replay
// validation. Two states with the same hash went through the same
// event history.
func (s *State) Hash() uint64 {
	h := fnv.New64a()
	writeU64 := func(v uint64) {
		var buf [8]byte
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		_, _ = h.Write(buf[:])
	}

	writeU64(s.Now)
	writeU64(s.Seq)
	if s.Halted {
		writeU64(1)
	} else {
		writeU64(0)
	}

	writeU64(quantize(s.Portfolio.Cash))
	writeU64(quantize(s.Portfolio.Equity))

	symbols := make([]string, 0, len(s.Portfolio.Positions))
	for sym := range s.Portfolio.Positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		pos := s.Portfolio.Positions[sym]
		_, _ = h.Write([]byte(sym))
		writeU64(quantize(pos.Qty))
		writeU64(quantize(pos.EntryPrice))
	}

	orders := s.Orders.All()
	sort.Slice(orders, func(i, j int) bool { return orders[i].ClientID < orders[j].ClientID })
	for _, o := range orders {
		_, _ = h.Write([]byte(o.ClientID))
		writeU64(uint64(o.State))
		writeU64(quantize(o.FilledQty))
	}

	writeU64(uint64(s.Risk.TradesToday))
	writeU64(quantize(s.Risk.DailyPnL))
	writeU64(uint64(s.Risk.ConsecutiveErrors))

	return h.Sum64()
}

// RiskState accumulates the counters the risk checks read.
type RiskState struct {
	TradesToday       uint32
	TradeDay          uint64
	DailyPnL          float64
	LastTradeTs       schema.Timestamp
	LastLossTs        schema.Timestamp
	ConsecutiveErrors uint32
	ConsecutiveLosses uint32
}

// ResetDay zeroes daily counters when the trading day rolls over.
func (r *RiskState) ResetDay(day uint64) {
	if r.TradeDay != day {
		r.TradeDay = day
		r.TradesToday = 0
		r.DailyPnL = 0
	}
}

// SymbolState is per-symbol market state and indicators.
type SymbolState struct {
	LastPrice float64
	LastTs    schema.Timestamp

	EmaFast    float64
	EmaSlow    float64
	Volatility float64

	// Welford running price stats.
	PriceN    uint64
	PriceMean float64
	PriceM2   float64

	FundingRate      float64
	LiquidationScore float64
	Spread           float64

	CandleCount uint64
	LastTradeTs schema.Timestamp

	PrevClose     float64
	PrevPrevClose float64

	SessionHigh float64
	SessionLow  float64

	// RSI gain/loss EMAs.
	GainEma float64
	LossEma float64
}

// NewSymbolState creates an empty symbol state.
func NewSymbolState() *SymbolState {
	return &SymbolState{SessionLow: math.MaxFloat64}
}

// OnCandle folds a closed candle into the indicators.
func (s *SymbolState) OnCandle(ts schema.Timestamp, close, _ float64, alphaFast, alphaSlow float64) {
	s.PrevPrevClose = s.PrevClose
	s.PrevClose = s.LastPrice

	s.LastPrice = close
	s.LastTs = ts
	s.CandleCount++

	if close > s.SessionHigh {
		s.SessionHigh = close
	}
	if s.SessionLow == math.MaxFloat64 || close < s.SessionLow {
		s.SessionLow = close
	}

	if s.EmaFast == 0 {
		s.EmaFast = close
		s.EmaSlow = close
	} else {
		s.EmaFast = alphaFast*close + (1-alphaFast)*s.EmaFast
		s.EmaSlow = alphaSlow*close + (1-alphaSlow)*s.EmaSlow
	}

	s.PriceN++
	delta := close - s.PriceMean
	s.PriceMean += delta / float64(s.PriceN)
	s.PriceM2 += delta * (close - s.PriceMean)
	if s.PriceN > 1 {
		s.Volatility = math.Sqrt(s.PriceM2 / float64(s.PriceN-1))
	}

	if s.PrevClose > 0 {
		change := close - s.PrevClose
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		const rsiAlpha = 1.0 / 14.0
		if s.GainEma == 0 && s.LossEma == 0 {
			s.GainEma = gain
			s.LossEma = loss
		} else {
			s.GainEma = rsiAlpha*gain + (1-rsiAlpha)*s.GainEma
			s.LossEma = rsiAlpha*loss + (1-rsiAlpha)*s.LossEma
		}
	}
}

// RSI in [0, 100]. Low means oversold, high means overbought.
func (s *SymbolState) RSI() float64 {
	if s.LossEma < 1e-9 {
		if s.GainEma > 1e-9 {
			return 100
		}
		return 50
	}
	return 100 - 100/(1+s.GainEma/s.LossEma)
}

// ZMeanDeviation is the price z-score relative to the running mean.
func (s *SymbolState) ZMeanDeviation() float64 {
	if s.Volatility > 0 && s.PriceN > 5 {
		return (s.LastPrice - s.PriceMean) / s.Volatility
	}
	return 0
}

// MomentumAcceleration is the rate-of-change second difference, a
// leading reversal signal.
func (s *SymbolState) MomentumAcceleration() float64 {
	if s.PrevClose > 0 && s.PrevPrevClose > 0 {
		rocNow := (s.LastPrice - s.PrevClose) / s.PrevClose
		rocPrev := (s.PrevClose - s.PrevPrevClose) / s.PrevPrevClose
		return rocNow - rocPrev
	}
	return 0
}

// ReturnPct is the last close-to-close return.
func (s *SymbolState) ReturnPct() float64 {
	if s.PrevClose > 0 {
		return (s.LastPrice - s.PrevClose) / s.PrevClose
	}
	return 0
}

// MeanReversionScore combines exhaustion signals. Positive leans buy,
// negative leans sell: fade extremes instead of chasing them.
func (s *SymbolState) MeanReversionScore() float64 {
	rsi := s.RSI()
	var rsiSignal float64
	switch {
	case rsi < 30:
		rsiSignal = (30 - rsi) / 30
	case rsi > 70:
		rsiSignal = -(rsi - 70) / 30
	}

	meanSignal := -s.ZMeanDeviation() * 0.2

	// High positive funding means the crowd is long; fade it.
	fundingSignal := -s.FundingRate * 500

	return rsiSignal*0.5 + meanSignal*0.3 + fundingSignal*0.2
}

// IsStale reports whether the feed has gone quiet too long.
func (s *SymbolState) IsStale(now schema.Timestamp, maxAgeMs uint64) bool {
	return now-min64(now, s.LastTs) > maxAgeMs
}

// Position is a signed holding for one symbol.
type Position struct {
	Qty        float64
	EntryPrice float64
}

// Portfolio tracks cash, equity, and per-symbol positions.
type Portfolio struct {
	Cash        float64
	Equity      float64
	EquityPeak  float64
	Positions   map[string]Position
	RealizedPnL float64
}

// NewPortfolio creates a portfolio with starting cash.
func NewPortfolio(startingCash float64) *Portfolio {
	return &Portfolio{
		Cash:       startingCash,
		Equity:     startingCash,
		EquityPeak: startingCash,
		Positions:  make(map[string]Position),
	}
}

// ApplyFill folds a fill into the position for the symbol and returns
// the realized pnl of any closed portion.
func (p *Portfolio) ApplyFill(symbol string, side schema.TradeSide, qty, price, fee float64) float64 {
	signedQty := qty
	if side == schema.SideSell {
		signedQty = -qty
	}

	pos := p.Positions[symbol]
	var realized float64

	prevQty := pos.Qty
	if prevQty != 0 && math.Abs(prevQty+signedQty) < math.Abs(prevQty) {
		closeQty := math.Min(math.Abs(signedQty), math.Abs(prevQty))
		dir := 1.0
		if prevQty < 0 {
			dir = -1.0
		}
		realized = (price - pos.EntryPrice) * closeQty * dir
	}

	p.Cash -= price*signedQty + fee
	pos.Qty += signedQty

	if math.Abs(pos.Qty) > 1e-9 {
		pos.EntryPrice = price
	} else {
		pos.Qty = 0
		pos.EntryPrice = 0
	}
	p.Positions[symbol] = pos

	var held float64
	for _, position := range p.Positions {
		held += position.Qty * position.EntryPrice
	}
	p.Equity = p.Cash + held
	if p.Equity > p.EquityPeak {
		p.EquityPeak = p.Equity
	}
	p.RealizedPnL += realized

	return realized
}

// DrawdownPct is the current distance from the equity peak.
func (p *Portfolio) DrawdownPct() float64 {
	if p.EquityPeak > 0 {
		return (p.EquityPeak - p.Equity) / p.EquityPeak
	}
	return 0
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
