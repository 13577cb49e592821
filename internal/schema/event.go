package schema

// Timestamp is milliseconds since epoch.
type Timestamp = uint64

// EventID identifies an event across a resumable source for idempotency.
type EventID struct {
	Source string `json:"source"`
	Seq    uint64 `json:"seq"`
}

// TradeSide is the direction of a trade or order.
type TradeSide uint8

const (
	SideBuy TradeSide = iota
	SideSell
)

func (s TradeSide) String() string {
	if s == SideSell {
		return "SELL"
	}
	return "BUY"
}

// Opposite returns the closing side.
func (s TradeSide) Opposite() TradeSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Event is an immutable, timestamped fact ingested by the engine.
// Market and Exec events carry a symbol; Sys events do not.
type Event interface {
	Timestamp() Timestamp
	Symbol() (string, bool)
	event()
}

// HealthStatus reports feed health.
type HealthStatus uint8

const (
	HealthOk HealthStatus = iota
	HealthDegraded
	HealthCritical
)

// HaltKind discriminates halt causes.
type HaltKind uint8

const (
	HaltKillSwitch HaltKind = iota
	HaltMaxErrors
	HaltMaxDrawdown
	HaltDataStale
	HaltWideSpread
	HaltPriceJump
	HaltManual
)

func (k HaltKind) String() string {
	switch k {
	case HaltKillSwitch:
		return "kill_switch"
	case HaltMaxErrors:
		return "max_errors"
	case HaltMaxDrawdown:
		return "max_drawdown"
	case HaltDataStale:
		return "data_stale"
	case HaltWideSpread:
		return "wide_spread"
	case HaltPriceJump:
		return "price_jump"
	case HaltManual:
		return "manual"
	default:
		return "unknown"
	}
}

// HaltCause carries the reason a halt was raised. Only the fields
// relevant to Kind are populated.
type HaltCause struct {
	Kind      HaltKind
	Symbol    string
	Count     uint32
	Pct       float64
	StaleSecs uint64
	Reason    string
}

// Market events.

type MarketCandle struct {
	Ts     Timestamp
	Sym    string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

type MarketTrade struct {
	Ts    Timestamp
	Sym   string
	Price float64
	Qty   float64
	Side  TradeSide
}

type MarketFunding struct {
	Ts     Timestamp
	Sym    string
	Rate   float64
	NextTs Timestamp
}

type MarketLiquidation struct {
	Ts    Timestamp
	Sym   string
	Side  TradeSide
	Qty   float64
	Price float64
}

type MarketBook struct {
	Ts     Timestamp
	Sym    string
	Bid    float64
	Ask    float64
	BidQty float64
	AskQty float64
}

// Exec events, produced by the execution collaborator.

type ExecAck struct {
	Ts       Timestamp
	Sym      string
	ClientID string
	OrderID  string
}

type ExecFill struct {
	Ts       Timestamp
	Sym      string
	ClientID string
	OrderID  string
	FillID   string
	Price    float64
	Qty      float64
	Fee      float64
	Side     TradeSide
}

type ExecPartialFill struct {
	Ts        Timestamp
	Sym       string
	ClientID  string
	OrderID   string
	FillID    string
	Price     float64
	Qty       float64
	Remaining float64
	Fee       float64
	Side      TradeSide
}

type ExecCancelAck struct {
	Ts       Timestamp
	Sym      string
	ClientID string
	OrderID  string
}

type ExecReject struct {
	Ts       Timestamp
	Sym      string
	ClientID string
	Reason   string
}

// Sys events.

type SysTimer struct {
	Ts   Timestamp
	Name string
}

type SysReconnect struct {
	Ts     Timestamp
	Source string
}

type SysDataStale struct {
	Ts       Timestamp
	Sym      string
	LastSeen Timestamp
}

type SysHealth struct {
	Ts     Timestamp
	Status HealthStatus
}

type SysHalt struct {
	Ts    Timestamp
	Cause HaltCause
}

func (e MarketCandle) Timestamp() Timestamp      { return e.Ts }
func (e MarketTrade) Timestamp() Timestamp       { return e.Ts }
func (e MarketFunding) Timestamp() Timestamp     { return e.Ts }
func (e MarketLiquidation) Timestamp() Timestamp { return e.Ts }
func (e MarketBook) Timestamp() Timestamp        { return e.Ts }
func (e ExecAck) Timestamp() Timestamp           { return e.Ts }
func (e ExecFill) Timestamp() Timestamp          { return e.Ts }
func (e ExecPartialFill) Timestamp() Timestamp   { return e.Ts }
func (e ExecCancelAck) Timestamp() Timestamp     { return e.Ts }
func (e ExecReject) Timestamp() Timestamp        { return e.Ts }
func (e SysTimer) Timestamp() Timestamp          { return e.Ts }
func (e SysReconnect) Timestamp() Timestamp      { return e.Ts }
func (e SysDataStale) Timestamp() Timestamp      { return e.Ts }
func (e SysHealth) Timestamp() Timestamp         { return e.Ts }
func (e SysHalt) Timestamp() Timestamp           { return e.Ts }

func (e MarketCandle) Symbol() (string, bool)      { return e.Sym, true }
func (e MarketTrade) Symbol() (string, bool)       { return e.Sym, true }
func (e MarketFunding) Symbol() (string, bool)     { return e.Sym, true }
func (e MarketLiquidation) Symbol() (string, bool) { return e.Sym, true }
func (e MarketBook) Symbol() (string, bool)        { return e.Sym, true }
func (e ExecAck) Symbol() (string, bool)           { return e.Sym, true }
func (e ExecFill) Symbol() (string, bool)          { return e.Sym, true }
func (e ExecPartialFill) Symbol() (string, bool)   { return e.Sym, true }
func (e ExecCancelAck) Symbol() (string, bool)     { return e.Sym, true }
func (e ExecReject) Symbol() (string, bool)        { return e.Sym, true }
func (e SysTimer) Symbol() (string, bool)          { return "", false }
func (e SysReconnect) Symbol() (string, bool)      { return "", false }
func (e SysDataStale) Symbol() (string, bool)      { return e.Sym, true }
func (e SysHealth) Symbol() (string, bool)         { return "", false }
func (e SysHalt) Symbol() (string, bool)           { return "", false }

func (MarketCandle) event()      {}
func (MarketTrade) event()       {}
func (MarketFunding) event()     {}
func (MarketLiquidation) event() {}
func (MarketBook) event()        {}
func (ExecAck) event()           {}
func (ExecFill) event()          {}
func (ExecPartialFill) event()   {}
func (ExecCancelAck) event()     {}
func (ExecReject) event()        {}
func (SysTimer) event()          {}
func (SysReconnect) event()      {}
func (SysDataStale) event()      {}
func (SysHealth) event()         {}
func (SysHalt) event()           {}
