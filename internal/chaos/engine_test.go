package chaos

import (
	"fmt"
	"testing"

	"main/internal/schema"
)

func TestShouldFaultBoundaries(t *testing.T) {
	if ShouldFault(0, 0) {
		t.Fatal("rate 0 must never fault")
	}
	if !ShouldFault(0, 0.0001) {
		t.Fatal("seed%10000==0 maps to 0.0, under any positive rate")
	}
	if !ShouldFault(9_999, 1.0) {
		t.Fatal("rate 1 must always fault")
	}
	if ShouldFault(9_999, 0.9999) {
		t.Fatal("seed 9999 maps to 0.9999, not under 0.9999")
	}
}

func TestProfileValidate(t *testing.T) {
	if err := Disabled().Validate(); err != nil {
		t.Fatalf("disabled profile: %v", err)
	}
	bad := Profile{DupFillRate: 1.5}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected validation error for rate > 1")
	}
	neg := Profile{TimeoutRate: -0.1}
	if err := neg.Validate(); err == nil {
		t.Fatal("expected validation error for negative rate")
	}
}

func streamOf(n int) []schema.Event {
	out := make([]schema.Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, schema.ExecFill{
			Ts:       uint64(1000 + i),
			Sym:      "BTCUSDT",
			ClientID: fmt.Sprintf("c-%d", i),
			FillID:   fmt.Sprintf("f-%d", i),
			Qty:      0.1,
			Price:    50_000,
			Side:     schema.SideBuy,
		})
	}
	return out
}

func TestSameSeedSameFaultPattern(t *testing.T) {
	run := func(seed uint64) []schema.Event {
		eng, err := NewEngine(seed, Profile{DropFillRate: 0.3, DupFillRate: 0.2})
		if err != nil {
			t.Fatalf("new engine: %v", err)
		}
		var out []schema.Event
		for _, ev := range streamOf(200) {
			out = append(out, eng.Process(ev)...)
		}
		return out
	}

	a, b := run(42), run(42)
	if len(a) != len(b) {
		t.Fatalf("same seed produced different lengths: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at %d: %v vs %v", i, a[i], b[i])
		}
	}

	c := run(43)
	if len(c) == len(a) {
		same := true
		for i := range a {
			if a[i] != c[i] {
				same = false
				break
			}
		}
		if same {
			t.Fatal("different seeds produced identical fault pattern")
		}
	}
}

func TestDisabledProfilePassesEverything(t *testing.T) {
	eng, err := NewEngine(7, Disabled())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	in := streamOf(50)
	var out []schema.Event
	for _, ev := range in {
		out = append(out, eng.Process(ev)...)
	}
	if len(out) != len(in) {
		t.Fatalf("disabled profile altered the stream: %d vs %d", len(out), len(in))
	}
}

func TestDropAndDuplicateRates(t *testing.T) {
	eng, err := NewEngine(9, Profile{DropFillRate: 0.5})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	kept := 0
	for _, ev := range streamOf(1000) {
		kept += len(eng.Process(ev))
	}
	if kept < 350 || kept > 650 {
		t.Fatalf("drop rate 0.5 kept %d of 1000", kept)
	}

	eng, err = NewEngine(9, Profile{DupFillRate: 1.0})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	out := eng.Process(streamOf(1)[0])
	if len(out) != 2 {
		t.Fatalf("dup rate 1.0 should duplicate, got %d events", len(out))
	}
}

func TestTimeoutSwallowsAcks(t *testing.T) {
	eng, err := NewEngine(3, Profile{TimeoutRate: 1.0})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	ack := schema.ExecAck{Ts: 1, Sym: "BTCUSDT", ClientID: "c-1", OrderID: "x-1"}
	if out := eng.Process(ack); len(out) != 0 {
		t.Fatalf("timeout rate 1.0 should swallow acks, got %d", len(out))
	}

	// Market events are never faulted.
	candle := schema.MarketCandle{Ts: 2, Sym: "BTCUSDT", Close: 1}
	if out := eng.Process(candle); len(out) != 1 {
		t.Fatalf("market event should pass through, got %d", len(out))
	}
}
