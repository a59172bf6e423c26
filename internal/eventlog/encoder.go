package eventlog

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"carbonPool/internal/model"
	"carbonPool/internal/pool"
)

// Encoder turns committed pool events into EVM-style log records.
type Encoder struct {
	chainID uint64
	address common.Address
	abi     abi.ABI
	now     func() time.Time
}

func NewEncoder(chainID uint64, poolAddress common.Address) (*Encoder, error) {
	parsed, err := PoolEventsABI()
	if err != nil {
		return nil, err
	}
	return &Encoder{chainID: chainID, address: poolAddress, abi: parsed, now: time.Now}, nil
}

// Encode packs ev with the actor as the single indexed topic.
func (e *Encoder) Encode(ev pool.Event) (model.LogRecord, error) {
	event, ok := e.abi.Events[string(ev.Kind)]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("unsupported event kind: %s", ev.Kind)
	}
	var args []interface{}
	switch ev.Kind {
	case pool.EventDeposit:
		args = []interface{}{toBig(ev.Reserve), toBig(ev.Shares)}
	case pool.EventSell, pool.EventBuy:
		args = []interface{}{toBig(ev.Credits), toBig(ev.Reserve), toBig(ev.Fee)}
	case pool.EventWithdraw:
		args = []interface{}{toBig(ev.Reserve), toBig(ev.Shares)}
	case pool.EventSweep:
		args = []interface{}{toBig(ev.Credits)}
	}
	data, err := event.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", ev.Kind, err)
	}
	return model.LogRecord{
		ChainID:    e.chainID,
		Seq:        ev.Seq,
		Address:    e.address.Hex(),
		Topics:     []string{event.ID.Hex(), common.BytesToHash(ev.Actor.Bytes()).Hex()},
		Data:       hexutil.Encode(data),
		Timestamp:  uint64(ev.Timestamp.Unix()),
		IngestedAt: e.now().UTC().Format(time.RFC3339),
	}, nil
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}
