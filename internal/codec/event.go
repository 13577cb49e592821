package codec

import (
	"encoding/json"

	"github.com/yanun0323/errors"

	"main/internal/schema"
)

var (
	ErrUnknownKind = errors.New("codec unknown event kind")
)

// Kind tags for journaled events. The tag is part of the journal
// format; renaming one breaks replay of old journals.
const (
	KindMarketCandle      = "market.candle"
	KindMarketTrade       = "market.trade"
	KindMarketFunding     = "market.funding"
	KindMarketLiquidation = "market.liquidation"
	KindMarketBook        = "market.book"
	KindExecAck           = "exec.ack"
	KindExecFill          = "exec.fill"
	KindExecPartialFill   = "exec.partial_fill"
	KindExecCancelAck     = "exec.cancel_ack"
	KindExecReject        = "exec.reject"
	KindSysTimer          = "sys.timer"
	KindSysReconnect      = "sys.reconnect"
	KindSysDataStale      = "sys.data_stale"
	KindSysHealth         = "sys.health"
	KindSysHalt           = "sys.halt"
)

// EncodeEvent returns the journal kind tag and JSON payload for an
// event.
func EncodeEvent(ev schema.Event) (string, []byte, error) {
	var kind string
	switch ev.(type) {
	case schema.MarketCandle:
		kind = KindMarketCandle
	case schema.MarketTrade:
		kind = KindMarketTrade
	case schema.MarketFunding:
		kind = KindMarketFunding
	case schema.MarketLiquidation:
		kind = KindMarketLiquidation
	case schema.MarketBook:
		kind = KindMarketBook
	case schema.ExecAck:
		kind = KindExecAck
	case schema.ExecFill:
		kind = KindExecFill
	case schema.ExecPartialFill:
		kind = KindExecPartialFill
	case schema.ExecCancelAck:
		kind = KindExecCancelAck
	case schema.ExecReject:
		kind = KindExecReject
	case schema.SysTimer:
		kind = KindSysTimer
	case schema.SysReconnect:
		kind = KindSysReconnect
	case schema.SysDataStale:
		kind = KindSysDataStale
	case schema.SysHealth:
		kind = KindSysHealth
	case schema.SysHalt:
		kind = KindSysHalt
	default:
		return "", nil, ErrUnknownKind
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return "", nil, errors.Wrap(err, "marshal event")
	}
	return kind, payload, nil
}

// DecodeEvent parses a journal payload back into an event.
func DecodeEvent(kind string, payload []byte) (schema.Event, error) {
	var (
		ev  schema.Event
		err error
	)
	switch kind {
	case KindMarketCandle:
		ev, err = decodeInto[schema.MarketCandle](payload)
	case KindMarketTrade:
		ev, err = decodeInto[schema.MarketTrade](payload)
	case KindMarketFunding:
		ev, err = decodeInto[schema.MarketFunding](payload)
	case KindMarketLiquidation:
		ev, err = decodeInto[schema.MarketLiquidation](payload)
	case KindMarketBook:
		ev, err = decodeInto[schema.MarketBook](payload)
	case KindExecAck:
		ev, err = decodeInto[schema.ExecAck](payload)
	case KindExecFill:
		ev, err = decodeInto[schema.ExecFill](payload)
	case KindExecPartialFill:
		ev, err = decodeInto[schema.ExecPartialFill](payload)
	case KindExecCancelAck:
		ev, err = decodeInto[schema.ExecCancelAck](payload)
	case KindExecReject:
		ev, err = decodeInto[schema.ExecReject](payload)
	case KindSysTimer:
		ev, err = decodeInto[schema.SysTimer](payload)
	case KindSysReconnect:
		ev, err = decodeInto[schema.SysReconnect](payload)
	case KindSysDataStale:
		ev, err = decodeInto[schema.SysDataStale](payload)
	case KindSysHealth:
		ev, err = decodeInto[schema.SysHealth](payload)
	case KindSysHalt:
		ev, err = decodeInto[schema.SysHalt](payload)
	default:
		return nil, ErrUnknownKind
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode "+kind)
	}
	return ev, nil
}

func decodeInto[E schema.Event](payload []byte) (schema.Event, error) {
	var e E
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, err
	}
	return e, nil
}
