package og

import (
	"errors"
)

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order state transition")
)

// FillEpsilon is the absolute tolerance for treating an order as fully
// filled. Quantity accumulation in floats can land just short of the
// requested quantity, so the comparison must be absolute, not relative.
const FillEpsilon = 1e-9

// OrderState tracks the lifecycle of an order.
type OrderState uint8

const (
	OrderStateNew OrderState = iota
	OrderStateSubmitted
	OrderStateAcked
	OrderStatePartFilled
	OrderStateFilled
	OrderStateCanceled
	OrderStateRejected
)

func (s OrderState) String() string {
	switch s {
	case OrderStateNew:
		return "New"
	case OrderStateSubmitted:
		return "Submitted"
	case OrderStateAcked:
		return "Acked"
	case OrderStatePartFilled:
		return "PartiallyFilled"
	case OrderStateFilled:
		return "Filled"
	case OrderStateCanceled:
		return "Canceled"
	case OrderStateRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderStateFilled, OrderStateCanceled, OrderStateRejected:
		return true
	default:
		return false
	}
}

// Transition is a lifecycle input consumed by the state machine.
type Transition interface {
	transition()
}

type Submit struct{}

type Ack struct {
	OrderID string
}

type Fill struct {
	FillID string
	Qty    float64
	Price  float64
}

type CancelRequest struct{}

type CancelAck struct{}

type Reject struct {
	Reason string
}

type Timeout struct{}

func (Submit) transition()        {}
func (Ack) transition()           {}
func (Fill) transition()          {}
func (CancelRequest) transition() {}
func (CancelAck) transition()     {}
func (Reject) transition()        {}
func (Timeout) transition()       {}

// Outcome classifies how a transition was handled.
type Outcome uint8

const (
	// OutcomeApplied means the order state changed.
	OutcomeApplied Outcome = iota
	// OutcomeDuplicateFill means the fill id was already recorded.
	OutcomeDuplicateFill
	// OutcomeTerminalAbsorbed means a terminal order swallowed the input.
	OutcomeTerminalAbsorbed
	// OutcomeIgnored means an unmatched pair succeeded as an explicit no-op.
	OutcomeIgnored
)

// Order holds the engine's view of a single order. Orders are never
// deleted, only transitioned into a terminal state.
type Order struct {
	ClientID     string
	Sym          string
	OrderID      string
	State        OrderState
	RequestedQty float64
	FilledQty    float64
	seenFills    map[string]struct{}
}

// StateMachine tracks order lifecycles keyed by client id. It is safe
// to feed the same event twice and safe to feed events out of the
// happy-path order; duplicates and stragglers resolve to no-ops.
type StateMachine struct {
	orders map[string]*Order
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{orders: make(map[string]*Order)}
}

// Create registers a new order in New state.
func (m *StateMachine) Create(clientID, symbol string, qty float64) (*Order, error) {
	if clientID == "" {
		return nil, ErrUnknownOrder
	}
	if _, ok := m.orders[clientID]; ok {
		return nil, ErrDuplicateOrder
	}
	o := &Order{
		ClientID:     clientID,
		Sym:          symbol,
		State:        OrderStateNew,
		RequestedQty: qty,
		seenFills:    make(map[string]struct{}),
	}
	m.orders[clientID] = o
	return o, nil
}

// Order returns the current order state.
func (m *StateMachine) Order(clientID string) (*Order, bool) {
	o, ok := m.orders[clientID]
	return o, ok
}

// Count returns the number of tracked orders.
func (m *StateMachine) Count() int {
	return len(m.orders)
}

// OpenOrders returns client ids of orders not yet terminal.
func (m *StateMachine) OpenOrders() []string {
	out := make([]string, 0, len(m.orders))
	for id, o := range m.orders {
		if !o.State.Terminal() {
			out = append(out, id)
		}
	}
	return out
}

// All returns every tracked order in unspecified map order.
func (m *StateMachine) All() []*Order {
	out := make([]*Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out
}

// Apply feeds one transition to the order identified by clientID.
func (m *StateMachine) Apply(clientID string, tr Transition) (Outcome, error) {
	o, ok := m.orders[clientID]
	if !ok {
		return OutcomeIgnored, ErrUnknownOrder
	}
	return o.Apply(tr)
}

// Apply runs the transition table against the order.
//
// Terminal Filled and Rejected absorb everything. Fills deduplicate by
// fill id. Unmatched Ack and Submit fail because they indicate a
// protocol violation upstream; any other unmatched pair is an explicit
// no-op so that duplicated or late exchange messages cannot corrupt
// accounting.
func (o *Order) Apply(tr Transition) (Outcome, error) {
	// Rejected and Filled absorb all further inputs. Canceled still
	// answers CancelAck and unmatched inputs as no-ops below.
	if o.State == OrderStateRejected || o.State == OrderStateFilled {
		return OutcomeTerminalAbsorbed, nil
	}

	switch t := tr.(type) {
	case Submit:
		if o.State == OrderStateNew {
			o.State = OrderStateSubmitted
			return OutcomeApplied, nil
		}
		return OutcomeIgnored, ErrInvalidTransition

	case Ack:
		if o.State == OrderStateSubmitted {
			o.OrderID = t.OrderID
			o.State = OrderStateAcked
			return OutcomeApplied, nil
		}
		return OutcomeIgnored, ErrInvalidTransition

	case Fill:
		if o.State == OrderStateAcked || o.State == OrderStatePartFilled {
			return o.applyFill(t), nil
		}
		return OutcomeIgnored, nil

	case CancelRequest:
		if o.State == OrderStateAcked || o.State == OrderStatePartFilled {
			o.State = OrderStateCanceled
			return OutcomeApplied, nil
		}
		return OutcomeIgnored, nil

	case CancelAck:
		// Idempotent ack of a state already reached.
		return OutcomeIgnored, nil

	case Reject:
		o.State = OrderStateRejected
		return OutcomeApplied, nil

	case Timeout:
		if o.State == OrderStateSubmitted || o.State == OrderStateAcked {
			o.State = OrderStateCanceled
			return OutcomeApplied, nil
		}
		return OutcomeIgnored, nil
	}

	return OutcomeIgnored, nil
}

func (o *Order) applyFill(t Fill) Outcome {
	if _, seen := o.seenFills[t.FillID]; seen {
		return OutcomeDuplicateFill
	}
	o.seenFills[t.FillID] = struct{}{}
	o.FilledQty += t.Qty
	if o.FilledQty+FillEpsilon >= o.RequestedQty {
		o.State = OrderStateFilled
	} else {
		o.State = OrderStatePartFilled
	}
	return OutcomeApplied
}

// SeenFill reports whether a fill id has already been applied.
func (o *Order) SeenFill(fillID string) bool {
	_, ok := o.seenFills[fillID]
	return ok
}
