package exec

import (
	"context"

	"github.com/yanun0323/errors"

	"main/internal/schema"
)

var (
	ErrVenueUnavailable = errors.New("venue unavailable")
	ErrUnknownCommand   = errors.New("unknown command")
)

// Venue accepts order commands and reports outcomes as exec events on
// its own clock. Implementations decide latency and fill behavior; the
// engine only ever sees the resulting events.
type Venue interface {
	Place(ctx context.Context, cmd schema.PlaceOrder) error
	Cancel(ctx context.Context, cmd schema.CancelOrder) error
	CancelAll(ctx context.Context, cmd schema.CancelAll) error
}
