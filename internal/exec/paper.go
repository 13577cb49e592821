package exec

import (
	"context"
	"fmt"

	"main/internal/bus"
	"main/internal/obs"
	"main/internal/schema"
)

// PaperConfig tunes the simulated venue.
type PaperConfig struct {
	// FeeRate is the taker fee fraction charged on notional.
	FeeRate float64 `json:"feeRate"`
	// LatencyMs is the simulated ack delay; fills land one latency
	// step after the ack.
	LatencyMs uint64 `json:"latencyMs"`
	// PartialPieces splits each order into this many fills. Zero and
	// one both mean a single full fill.
	PartialPieces int `json:"partialPieces"`
}

// Paper is a deterministic simulated venue. Market orders fill at the
// last observed price for the symbol; everything it produces goes back
// through the bus so the reducer sees venue responses in timestamp
// order like any other event.
type Paper struct {
	cfg   PaperConfig
	bus   *bus.Bus
	ids   *obs.TraceGenerator
	last  map[string]float64
	clock map[string]uint64
}

// NewPaper creates a paper venue publishing into the given bus.
func NewPaper(cfg PaperConfig, b *bus.Bus) *Paper {
	if cfg.PartialPieces < 1 {
		cfg.PartialPieces = 1
	}
	return &Paper{
		cfg:   cfg,
		bus:   b,
		ids:   obs.NewTraceGenerator(1),
		last:  make(map[string]float64),
		clock: make(map[string]uint64),
	}
}

// OnMarket tracks last prices so market orders have a fill price.
func (p *Paper) OnMarket(ev schema.Event) {
	switch e := ev.(type) {
	case schema.MarketCandle:
		p.last[e.Sym] = e.Close
		p.clock[e.Sym] = e.Ts
	case schema.MarketTrade:
		p.last[e.Sym] = e.Price
		p.clock[e.Sym] = e.Ts
	case schema.MarketBook:
		if e.Bid > 0 && e.Ask > 0 {
			p.last[e.Sym] = (e.Bid + e.Ask) / 2
		}
		p.clock[e.Sym] = e.Ts
	}
}

// Place simulates acceptance and fills of a market order.
func (p *Paper) Place(_ context.Context, cmd schema.PlaceOrder) error {
	price, ok := p.last[cmd.Sym]
	if !ok || price <= 0 {
		p.bus.Push(schema.ExecReject{
			Ts:       p.clock[cmd.Sym] + p.cfg.LatencyMs,
			Sym:      cmd.Sym,
			ClientID: cmd.ClientID,
			Reason:   "no market price",
		})
		return nil
	}
	if cmd.Price != nil {
		price = *cmd.Price
	}

	now := p.clock[cmd.Sym]
	orderID := fmt.Sprintf("x-%d", p.ids.Next())
	p.bus.Push(schema.ExecAck{
		Ts:       now + p.cfg.LatencyMs,
		Sym:      cmd.Sym,
		ClientID: cmd.ClientID,
		OrderID:  orderID,
	})

	pieces := p.cfg.PartialPieces
	pieceQty := cmd.Qty / float64(pieces)
	remaining := cmd.Qty
	for i := 0; i < pieces; i++ {
		fillID := fmt.Sprintf("f-%d", p.ids.Next())
		ts := now + p.cfg.LatencyMs*uint64(i+2)
		qty := pieceQty
		if i == pieces-1 {
			// Last piece takes the remainder so quantities always
			// sum exactly.
			qty = remaining
		}
		remaining -= qty
		fee := qty * price * p.cfg.FeeRate

		if i == pieces-1 {
			p.bus.Push(schema.ExecFill{
				Ts: ts, Sym: cmd.Sym, ClientID: cmd.ClientID, OrderID: orderID,
				FillID: fillID, Price: price, Qty: qty, Fee: fee, Side: cmd.Side,
			})
		} else {
			p.bus.Push(schema.ExecPartialFill{
				Ts: ts, Sym: cmd.Sym, ClientID: cmd.ClientID, OrderID: orderID,
				FillID: fillID, Price: price, Qty: qty, Remaining: remaining, Fee: fee, Side: cmd.Side,
			})
		}
	}
	return nil
}

// Cancel acks immediately; fills are instantaneous here so there is
// never anything left to cancel.
func (p *Paper) Cancel(_ context.Context, cmd schema.CancelOrder) error {
	p.bus.Push(schema.ExecCancelAck{
		Ts:       p.clock[cmd.Sym] + p.cfg.LatencyMs,
		Sym:      cmd.Sym,
		ClientID: cmd.ClientID,
	})
	return nil
}

// CancelAll is a no-op for the same reason.
func (p *Paper) CancelAll(context.Context, schema.CancelAll) error {
	return nil
}
