package eventlog

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"carbonPool/internal/model"
	"carbonPool/internal/pool"
)

// Decoder decodes pool event log records.
type Decoder struct {
	poolABI     abi.ABI
	topicToName map[string]string
}

func NewDecoder() (*Decoder, error) {
	parsed, err := PoolEventsABI()
	if err != nil {
		return nil, err
	}
	topicToName := make(map[string]string, len(parsed.Events))
	for name, event := range parsed.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}
	return &Decoder{poolABI: parsed, topicToName: topicToName}, nil
}

// CanDecode checks if the topic0 is a pool event.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	ev, err := d.PoolEvent(log)
	if err != nil {
		return nil, err
	}
	var decoded interface{}
	switch ev.Kind {
	case pool.EventDeposit:
		decoded = model.DepositEventData{
			Provider:      ev.Actor.Hex(),
			ReserveAmount: ev.Reserve.Dec(),
			SharesMinted:  ev.Shares.Dec(),
		}
	case pool.EventSell, pool.EventBuy:
		decoded = model.TradeEventData{
			Trader:        ev.Actor.Hex(),
			CreditAmount:  ev.Credits.Dec(),
			ReserveAmount: ev.Reserve.Dec(),
			Fee:           ev.Fee.Dec(),
		}
	case pool.EventWithdraw:
		decoded = model.WithdrawEventData{
			Provider:     ev.Actor.Hex(),
			ReservePaid:  ev.Reserve.Dec(),
			SharesBurned: ev.Shares.Dec(),
		}
	case pool.EventSweep:
		decoded = model.SweepEventData{
			Recipient:    ev.Actor.Hex(),
			CreditAmount: ev.Credits.Dec(),
		}
	}
	return &model.TypedEvent{
		ChainID:   log.ChainID,
		Seq:       log.Seq,
		Address:   log.Address,
		EventName: string(ev.Kind),
		Timestamp: log.Timestamp,
		Decoded:   decoded,
		Raw:       &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}, nil
}

// PoolEvent reconstructs the pool event a log record was encoded from.
func (d *Decoder) PoolEvent(log model.LogRecord) (pool.Event, error) {
	if len(log.Topics) == 0 {
		return pool.Event{}, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return pool.Event{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return pool.Event{}, fmt.Errorf("invalid pool address: %s", log.Address)
	}
	event := d.poolABI.Events[name]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return pool.Event{}, err
	}
	var indexed struct {
		Provider  common.Address
		Seller    common.Address
		Buyer     common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return pool.Event{}, fmt.Errorf("parse topics: %w", err)
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return pool.Event{}, err
	}
	amounts := make([]*uint256.Int, len(values))
	for i, v := range values {
		if amounts[i], err = asUint256(v); err != nil {
			return pool.Event{}, fmt.Errorf("%s arg %d: %w", name, i, err)
		}
	}

	ev := pool.Event{
		Seq:       log.Seq,
		Kind:      pool.EventKind(name),
		Timestamp: time.Unix(int64(log.Timestamp), 0).UTC(),
		Credits:   new(uint256.Int),
		Reserve:   new(uint256.Int),
		Shares:    new(uint256.Int),
		Fee:       new(uint256.Int),
	}
	switch ev.Kind {
	case pool.EventDeposit:
		ev.Actor, ev.Reserve, ev.Shares = indexed.Provider, amounts[0], amounts[1]
	case pool.EventSell:
		ev.Actor, ev.Credits, ev.Reserve, ev.Fee = indexed.Seller, amounts[0], amounts[1], amounts[2]
	case pool.EventBuy:
		ev.Actor, ev.Credits, ev.Reserve, ev.Fee = indexed.Buyer, amounts[0], amounts[1], amounts[2]
	case pool.EventWithdraw:
		ev.Actor, ev.Reserve, ev.Shares = indexed.Provider, amounts[0], amounts[1]
	case pool.EventSweep:
		ev.Actor, ev.Credits = indexed.Recipient, amounts[0]
	default:
		return pool.Event{}, fmt.Errorf("unsupported event name: %s", name)
	}
	return ev, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	out := make([]common.Hash, 0, indexedCount)
	for _, topic := range topics[1:] {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asUint256(value interface{}) (*uint256.Int, error) {
	v, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
	out, overflow := uint256.FromBig(v)
	if overflow || v.Sign() < 0 {
		return nil, fmt.Errorf("value out of uint256 range: %s", v.String())
	}
	return out, nil
}
