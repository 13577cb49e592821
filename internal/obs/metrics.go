package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters for a run. Safe for concurrent
// use, so parallel stress workers can share one instance.
type Metrics struct {
	eventsReduced   uint64
	commandsEmitted uint64
	ordersPlaced    uint64
	fills           uint64
	rejects         uint64
	halts           uint64
	runsCompleted   uint64
	runsDiverged    uint64

	reduceLatency   LatencyStats
	dispatchLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventsReduced   uint64
	CommandsEmitted uint64
	OrdersPlaced    uint64
	Fills           uint64
	Rejects         uint64
	Halts           uint64
	RunsCompleted   uint64
	RunsDiverged    uint64
	ReduceLatency   LatencySnapshot
	DispatchLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// AddEvents records reduced events.
func (m *Metrics) AddEvents(n uint64) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.eventsReduced, n)
}

// AddCommands records emitted commands.
func (m *Metrics) AddCommands(n uint64) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.commandsEmitted, n)
}

// IncOrderPlaced records one placed order.
func (m *Metrics) IncOrderPlaced() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersPlaced, 1)
}

// IncFill records one applied fill.
func (m *Metrics) IncFill() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fills, 1)
}

// IncReject records one venue reject.
func (m *Metrics) IncReject() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.rejects, 1)
}

// IncHalt records one engine halt.
func (m *Metrics) IncHalt() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.halts, 1)
}

// IncRunCompleted records one finished run.
func (m *Metrics) IncRunCompleted() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.runsCompleted, 1)
}

// IncRunDiverged records a replay hash mismatch.
func (m *Metrics) IncRunDiverged() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.runsDiverged, 1)
}

// ObserveReduce measures one reduce call.
func (m *Metrics) ObserveReduce(d time.Duration) {
	if m == nil {
		return
	}
	m.reduceLatency.Observe(d)
}

// ObserveDispatch measures one command batch dispatch.
func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		EventsReduced:   atomic.LoadUint64(&m.eventsReduced),
		CommandsEmitted: atomic.LoadUint64(&m.commandsEmitted),
		OrdersPlaced:    atomic.LoadUint64(&m.ordersPlaced),
		Fills:           atomic.LoadUint64(&m.fills),
		Rejects:         atomic.LoadUint64(&m.rejects),
		Halts:           atomic.LoadUint64(&m.halts),
		RunsCompleted:   atomic.LoadUint64(&m.runsCompleted),
		RunsDiverged:    atomic.LoadUint64(&m.runsDiverged),
		ReduceLatency:   m.reduceLatency.Snapshot(),
		DispatchLatency: m.dispatchLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
