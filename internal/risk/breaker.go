package risk

// BreakerState is the connectivity state of a guarded dependency.
type BreakerState uint8

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "Closed"
	case BreakerOpen:
		return "Open"
	case BreakerHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// Breaker guards a single unreliable downstream dependency, typically
// the execution adapter. Closed allows traffic, Open blocks it, and
// HalfOpen lets a trial request through.
type Breaker struct {
	state     BreakerState
	failures  uint32
	threshold uint32
}

// NewBreaker creates a closed breaker that opens after threshold
// consecutive failures.
func NewBreaker(threshold uint32) *Breaker {
	if threshold == 0 {
		threshold = 1
	}
	return &Breaker{state: BreakerClosed, threshold: threshold}
}

// RecordSuccess resets the failure count and closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.failures = 0
	b.state = BreakerClosed
}

// RecordFailure counts a failure and trips to Open at the threshold.
func (b *Breaker) RecordFailure() {
	b.failures++
	if b.failures >= b.threshold {
		b.state = BreakerOpen
	}
}

// Allow reports whether a new request may proceed.
func (b *Breaker) Allow() bool {
	return b.state == BreakerClosed || b.state == BreakerHalfOpen
}

// HalfOpen moves an open breaker to the trial state.
func (b *Breaker) HalfOpen() {
	if b.state == BreakerOpen {
		b.state = BreakerHalfOpen
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() uint32 {
	return b.failures
}
