package schema

// Command is an outbound instruction produced by the reducer.
// Commands are the only channel through which the engine core
// affects the outside world.
type Command interface {
	command()
}

// LogLevel for Log commands.
type LogLevel uint8

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "DEBUG"
	case LogInfo:
		return "INFO"
	case LogWarn:
		return "WARN"
	case LogError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

type PlaceOrder struct {
	Sym      string
	ClientID string
	Side     TradeSide
	Qty      float64
	// Price is nil for market orders.
	Price *float64
}

type CancelOrder struct {
	Sym      string
	ClientID string
}

// CancelAll cancels every open order, or only those for Sym when set.
type CancelAll struct {
	Sym string
}

type Halt struct {
	Cause HaltCause
}

type Log struct {
	Level LogLevel
	Msg   string
}

func (PlaceOrder) command()  {}
func (CancelOrder) command() {}
func (CancelAll) command()   {}
func (Halt) command()        {}
func (Log) command()         {}
