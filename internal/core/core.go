/*
Core wires the deterministic engine loop together.

# Module
  - event bus: totally orders market, exec, and sys events
  - fault injector: optional adversarial transform of the exec stream
  - reducer: folds events into engine state, emits commands
  - dispatcher: routes commands to the venue behind a circuit breaker
  - journal: records the post-injection stream for byte-exact replay

# Source
 1. historical candles from data loaders
 2. synthetic tapes from mdg
 3. recorded journals from replay

# Produce
  - exec events looped back through the bus by the paper venue
  - a Result summary suitable for the run store
*/
package core

import (
	"context"
	"time"

	"main/internal/bus"
	"main/internal/chaos"
	"main/internal/engine"
	"main/internal/exec"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/recorder"
	"main/internal/schema"
)

// Core owns one engine run. It is single-threaded: events leave the
// bus one at a time and each is fully reduced and dispatched before
// the next.
type Core struct {
	cfg        ops.FileConfig
	bus        *bus.Bus
	state      *engine.State
	injector   *chaos.Engine
	venue      *exec.Paper
	dispatcher *exec.Dispatcher
	metrics    *obs.Metrics
	journal    *recorder.Writer

	seq uint64
}

// Result summarizes a completed run.
type Result struct {
	Events      uint64
	Commands    uint64
	Fills       uint64
	FinalHash   uint64
	Halted      bool
	HaltReason  string
	Equity      float64
	RealizedPnL float64
	MaxDrawdown float64
}

// New builds a core from config. metrics may be nil.
func New(cfg ops.FileConfig, metrics *obs.Metrics) (*Core, error) {
	b := bus.New()
	state := engine.NewState(cfg.StartingCash)
	state.Drift = cfg.Drift.Tracker()

	venue := exec.NewPaper(cfg.Paper, b)

	c := &Core{
		cfg:        cfg,
		bus:        b,
		state:      state,
		venue:      venue,
		dispatcher: exec.NewDispatcher(venue, cfg.Breaker.FailureThreshold),
		metrics:    metrics,
	}
	if cfg.Chaos.Enabled() {
		injector, err := chaos.NewEngine(cfg.ChaosSeed, cfg.Chaos)
		if err != nil {
			return nil, err
		}
		c.injector = injector
	}
	return c, nil
}

// State exposes the engine state for inspection after a run.
func (c *Core) State() *engine.State {
	return c.state
}

// WithJournal records every reduced event to the given writer.
func (c *Core) WithJournal(w *recorder.Writer) *Core {
	c.journal = w
	return c
}

// Feed pushes events onto the bus.
func (c *Core) Feed(events ...schema.Event) {
	for _, ev := range events {
		c.bus.Push(ev)
	}
}

// Run drains the bus to completion and returns the run summary. Exec
// events produced by the venue re-enter the bus mid-run, so the loop
// ends only when nothing remains in flight.
func (c *Core) Run(ctx context.Context) (Result, error) {
	var result Result

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		ev, ok := c.bus.Pop()
		if !ok {
			break
		}

		events := []schema.Event{ev}
		if c.injector != nil {
			events = c.injector.Process(ev)
		}

		for _, ev := range events {
			out, err := c.step(ctx, ev)
			if err != nil {
				return result, err
			}
			result.Events++
			result.Commands += uint64(len(out.Commands))
			result.FinalHash = out.StateHash
			if _, isFill := ev.(schema.ExecFill); isFill {
				result.Fills++
			}
		}
	}

	result.Halted = c.state.Halted
	result.HaltReason = c.state.HaltReason
	result.Equity = c.state.Portfolio.Equity
	result.RealizedPnL = c.state.Portfolio.RealizedPnL
	result.MaxDrawdown = c.state.Portfolio.DrawdownPct()
	c.metrics.IncRunCompleted()
	return result, nil
}

func (c *Core) step(ctx context.Context, ev schema.Event) (engine.Output, error) {
	c.seq++
	if c.journal != nil {
		if err := c.journal.Append(c.seq, ev); err != nil {
			return engine.Output{}, err
		}
	}

	c.venue.OnMarket(ev)

	start := time.Now()
	out := engine.Reduce(c.state, ev, c.cfg.Engine)
	c.metrics.ObserveReduce(time.Since(start))
	c.metrics.AddEvents(1)
	c.metrics.AddCommands(uint64(len(out.Commands)))
	c.observeCommands(out.Commands)

	start = time.Now()
	err := c.dispatcher.Dispatch(ctx, out.Commands)
	c.metrics.ObserveDispatch(time.Since(start))
	// Venue failures are the breaker's business, not a run abort.
	_ = err

	return out, nil
}

func (c *Core) observeCommands(commands []schema.Command) {
	for _, cmd := range commands {
		switch cmd.(type) {
		case schema.PlaceOrder:
			c.metrics.IncOrderPlaced()
		case schema.Halt:
			c.metrics.IncHalt()
		}
	}
}
