package mdg

import (
	"math"

	"main/internal/schema"
)

// Generator produces a deterministic synthetic candle stream for
// backtests and stress runs. The same seed always yields the same
// tape.
type Generator struct {
	symbol     string
	state      uint64
	price      float64
	volBase    float64
	intervalMs uint64
	nextTs     uint64
	timerEvery int
	count      int
}

// Config tunes the synthetic tape.
type Config struct {
	Symbol     string  `json:"symbol"`
	Seed       uint64  `json:"seed"`
	StartPrice float64 `json:"startPrice"`
	// Volatility is the per-candle move scale as a fraction of price.
	Volatility float64 `json:"volatility"`
	IntervalMs uint64  `json:"intervalMs"`
	// TimerEvery interleaves a SysTimer after this many candles.
	// Zero disables timers.
	TimerEvery int `json:"timerEvery"`
}

// NewGenerator creates a generator from config, applying defaults for
// zero fields.
func NewGenerator(cfg Config) *Generator {
	if cfg.Symbol == "" {
		cfg.Symbol = "BTCUSDT"
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = 50_000
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = 0.002
	}
	if cfg.IntervalMs == 0 {
		cfg.IntervalMs = 60_000
	}
	return &Generator{
		symbol:     cfg.Symbol,
		state:      cfg.Seed,
		price:      cfg.StartPrice,
		volBase:    cfg.Volatility,
		intervalMs: cfg.IntervalMs,
		nextTs:     cfg.IntervalMs,
		timerEvery: cfg.TimerEvery,
	}
}

func (g *Generator) next() uint64 {
	g.state = g.state*6364136223846793005 + 1442695040888963407
	return g.state
}

// unit returns a deterministic value in [0, 1).
func (g *Generator) unit() float64 {
	return float64(g.next()>>11) / float64(1<<53)
}

// gauss approximates a standard normal via Box-Muller.
func (g *Generator) gauss() float64 {
	u1 := g.unit()
	if u1 < 1e-12 {
		u1 = 1e-12
	}
	u2 := g.unit()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Next returns the next batch of events: one candle, optionally
// followed by a timer tick.
func (g *Generator) Next() []schema.Event {
	ts := g.nextTs
	g.nextTs += g.intervalMs
	g.count++

	open := g.price
	move := g.gauss() * g.volBase * g.price
	// Occasional mean pull keeps the walk from drifting off to zero.
	pull := (50_000 - g.price) * 0.001
	close := open + move + pull
	if close <= 0 {
		close = open * 0.5
	}
	high := math.Max(open, close) * (1 + g.unit()*g.volBase)
	low := math.Min(open, close) * (1 - g.unit()*g.volBase)
	volume := 1 + g.unit()*100

	g.price = close

	events := []schema.Event{schema.MarketCandle{
		Ts: ts, Sym: g.symbol,
		Open: open, High: high, Low: low, Close: close, Volume: volume,
	}}

	if g.timerEvery > 0 && g.count%g.timerEvery == 0 {
		events = append(events, schema.SysTimer{Ts: ts + 1, Name: "gen"})
	}
	return events
}

// Tape generates n candle batches as a flat event slice.
func (g *Generator) Tape(n int) []schema.Event {
	var events []schema.Event
	for i := 0; i < n; i++ {
		events = append(events, g.Next()...)
	}
	return events
}
