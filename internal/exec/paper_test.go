package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/bus"
	"main/internal/schema"
)

func TestPaperFillsAtLastPrice(t *testing.T) {
	b := bus.New()
	venue := NewPaper(PaperConfig{FeeRate: 0.001, LatencyMs: 50}, b)

	venue.OnMarket(schema.MarketCandle{Ts: 1000, Sym: "BTCUSDT", Close: 50_000})
	err := venue.Place(context.Background(), schema.PlaceOrder{
		Sym: "BTCUSDT", ClientID: "o-1", Side: schema.SideBuy, Qty: 0.01,
	})
	require.NoError(t, err)

	events := b.Drain()
	require.Len(t, events, 2)

	ack, ok := events[0].(schema.ExecAck)
	require.True(t, ok)
	assert.Equal(t, "o-1", ack.ClientID)
	assert.Equal(t, uint64(1050), ack.Ts)

	fill, ok := events[1].(schema.ExecFill)
	require.True(t, ok)
	assert.Equal(t, 50_000.0, fill.Price)
	assert.Equal(t, 0.01, fill.Qty)
	assert.InDelta(t, 0.5, fill.Fee, 1e-9)
	assert.Equal(t, uint64(1100), fill.Ts)
}

func TestPaperRejectsWithoutPrice(t *testing.T) {
	b := bus.New()
	venue := NewPaper(PaperConfig{}, b)

	require.NoError(t, venue.Place(context.Background(), schema.PlaceOrder{
		Sym: "BTCUSDT", ClientID: "o-1", Side: schema.SideBuy, Qty: 0.01,
	}))

	events := b.Drain()
	require.Len(t, events, 1)
	reject, ok := events[0].(schema.ExecReject)
	require.True(t, ok)
	assert.Equal(t, "o-1", reject.ClientID)
}

func TestPaperPartialPiecesSumExactly(t *testing.T) {
	b := bus.New()
	venue := NewPaper(PaperConfig{LatencyMs: 10, PartialPieces: 3}, b)

	venue.OnMarket(schema.MarketCandle{Ts: 1000, Sym: "BTCUSDT", Close: 50_000})
	require.NoError(t, venue.Place(context.Background(), schema.PlaceOrder{
		Sym: "BTCUSDT", ClientID: "o-1", Side: schema.SideSell, Qty: 0.01,
	}))

	events := b.Drain()
	require.Len(t, events, 4)

	var total float64
	fillIDs := map[string]struct{}{}
	for _, ev := range events[1:] {
		switch fill := ev.(type) {
		case schema.ExecPartialFill:
			total += fill.Qty
			fillIDs[fill.FillID] = struct{}{}
		case schema.ExecFill:
			total += fill.Qty
			fillIDs[fill.FillID] = struct{}{}
		default:
			t.Fatalf("unexpected event %T", ev)
		}
	}
	assert.Equal(t, 0.01, total)
	assert.Len(t, fillIDs, 3, "fill ids must be unique")

	_, isFull := events[3].(schema.ExecFill)
	assert.True(t, isFull, "last piece must be a full fill")
}

func TestPaperLimitPriceOverridesMark(t *testing.T) {
	b := bus.New()
	venue := NewPaper(PaperConfig{LatencyMs: 1}, b)
	venue.OnMarket(schema.MarketTrade{Ts: 1000, Sym: "BTCUSDT", Price: 50_000})

	limit := 49_900.0
	require.NoError(t, venue.Place(context.Background(), schema.PlaceOrder{
		Sym: "BTCUSDT", ClientID: "o-1", Side: schema.SideBuy, Qty: 0.01, Price: &limit,
	}))

	events := b.Drain()
	fill, ok := events[1].(schema.ExecFill)
	require.True(t, ok)
	assert.Equal(t, limit, fill.Price)
}
