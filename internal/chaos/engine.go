package chaos

import (
	"fmt"

	"main/internal/schema"
)

// ShouldFault derives a pseudo-uniform value in [0, 1) from the seed
// and compares it against rate. Pure: the same (seed, rate) always
// answers the same way.
func ShouldFault(seed uint64, rate float64) bool {
	v := float64(seed%10_000) / 10_000.0
	return v < rate
}

// Profile bundles the named fault rates used to exercise the order
// lifecycle against synthetic unreliable streams.
type Profile struct {
	TimeoutRate  float64 `json:"timeoutRate"`
	DupFillRate  float64 `json:"dupFillRate"`
	DropFillRate float64 `json:"dropFillRate"`
}

// Disabled returns a profile that never faults.
func Disabled() Profile {
	return Profile{}
}

// Validate ensures every rate is within [0, 1].
func (p Profile) Validate() error {
	for name, rate := range map[string]float64{
		"timeoutRate":  p.TimeoutRate,
		"dupFillRate":  p.DupFillRate,
		"dropFillRate": p.DropFillRate,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	return nil
}

// Enabled reports whether any rate is non-zero.
func (p Profile) Enabled() bool {
	return p.TimeoutRate > 0 || p.DupFillRate > 0 || p.DropFillRate > 0
}

// Engine applies the fault profile to an exec event stream. Decisions
// derive from a seeded generator, so the same seed always yields the
// same fault pattern over the same stream.
type Engine struct {
	profile Profile
	state   uint64
}

// NewEngine creates a fault engine after validating the profile.
func NewEngine(seed uint64, profile Profile) (*Engine, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = 1
	}
	return &Engine{profile: profile, state: seed}, nil
}

// next advances the internal sequence with a 64-bit LCG step.
func (e *Engine) next() uint64 {
	e.state = e.state*6364136223846793005 + 1442695040888963407
	return e.state
}

// Process applies faults to one event and returns the events, if any,
// that survive. Fills can be dropped or duplicated; acknowledgments
// can be swallowed so the order times out downstream. Non-exec events
// pass through untouched.
func (e *Engine) Process(ev schema.Event) []schema.Event {
	if e == nil || !e.profile.Enabled() {
		return []schema.Event{ev}
	}

	switch ev.(type) {
	case schema.ExecFill, schema.ExecPartialFill:
		if ShouldFault(e.next(), e.profile.DropFillRate) {
			return nil
		}
		if ShouldFault(e.next(), e.profile.DupFillRate) {
			return []schema.Event{ev, ev}
		}
		return []schema.Event{ev}

	case schema.ExecAck, schema.ExecCancelAck:
		if ShouldFault(e.next(), e.profile.TimeoutRate) {
			return nil
		}
		return []schema.Event{ev}
	}

	return []schema.Event{ev}
}
