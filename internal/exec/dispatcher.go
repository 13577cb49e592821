package exec

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/risk"
	"main/internal/schema"
)

// Dispatcher routes reducer commands to a venue behind a circuit
// breaker. Venue failures trip the breaker; while it is open, order
// commands are dropped with a log instead of hammering a dead venue.
type Dispatcher struct {
	venue   Venue
	breaker *risk.Breaker
}

// NewDispatcher wires a venue behind a breaker with the given
// consecutive-failure threshold.
func NewDispatcher(venue Venue, failureThreshold uint32) *Dispatcher {
	return &Dispatcher{
		venue:   venue,
		breaker: risk.NewBreaker(failureThreshold),
	}
}

// Breaker exposes the breaker for inspection.
func (d *Dispatcher) Breaker() *risk.Breaker {
	return d.breaker
}

// Dispatch executes one batch of commands in order. Log commands are
// emitted locally; order commands go to the venue when the breaker
// allows. The returned error is the first venue failure, after every
// command in the batch has been attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, commands []schema.Command) error {
	var firstErr error
	for _, cmd := range commands {
		if err := d.dispatchOne(ctx, cmd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *Dispatcher) dispatchOne(ctx context.Context, cmd schema.Command) error {
	switch c := cmd.(type) {
	case schema.Log:
		d.emitLog(c)
		return nil
	case schema.Halt:
		logs.Errorf("halt: %s", c.Cause.Kind)
		return nil
	case schema.PlaceOrder:
		return d.send(c.ClientID, func() error { return d.venue.Place(ctx, c) })
	case schema.CancelOrder:
		return d.send(c.ClientID, func() error { return d.venue.Cancel(ctx, c) })
	case schema.CancelAll:
		return d.send("cancel-all", func() error { return d.venue.CancelAll(ctx, c) })
	default:
		return ErrUnknownCommand
	}
}

func (d *Dispatcher) send(id string, call func() error) error {
	if !d.breaker.Allow() {
		logs.Warnf("breaker open, dropping %s", id)
		return errors.Wrap(ErrVenueUnavailable, id)
	}
	if err := call(); err != nil {
		d.breaker.RecordFailure()
		return errors.Wrap(err, "venue call "+id)
	}
	d.breaker.RecordSuccess()
	return nil
}

func (*Dispatcher) emitLog(c schema.Log) {
	switch c.Level {
	case schema.LogDebug:
		logs.Debug(c.Msg)
	case schema.LogInfo:
		logs.Info(c.Msg)
	case schema.LogWarn:
		logs.Warn(c.Msg)
	default:
		logs.Error(c.Msg)
	}
}
