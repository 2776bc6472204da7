package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"veilswap/internal/model"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Decoder converts settlement-engine logs into typed ledger events for
// one schema version.
type Decoder struct {
	version   Version
	eventsABI abi.ABI
}

// NewDecoder builds a decoder for the given engine version.
func NewDecoder(version Version) (*Decoder, error) {
	var (
		eventsABI abi.ABI
		err       error
	)
	switch version {
	case V6:
		eventsABI, err = V6EventsABI()
	case V8:
		eventsABI, err = V8EventsABI()
	default:
		return nil, fmt.Errorf("unsupported engine version: %d", version)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s event abi: %w", version, err)
	}
	return &Decoder{version: version, eventsABI: eventsABI}, nil
}

// Version returns the schema version this decoder handles.
func (d *Decoder) Version() Version {
	return d.version
}

// Topic returns the topic0 hash for a named event in this schema.
func (d *Decoder) Topic(name string) (common.Hash, error) {
	event, ok := d.eventsABI.Events[name]
	if !ok {
		return common.Hash{}, fmt.Errorf("event %s not in %s schema", name, d.version)
	}
	return event.ID, nil
}

// FillEventName is the fill-notification event for this schema.
func (d *Decoder) FillEventName() string {
	if d.version == V6 {
		return "BucketFilled"
	}
	return "RangeActivated"
}

// DecodeDeposit decodes a Deposit log.
func (d *Decoder) DecodeDeposit(log types.Log) (model.DepositEvent, error) {
	key, user, values, err := d.decodeUserEvent("Deposit", log)
	if err != nil {
		return model.DepositEvent{}, err
	}

	out := model.DepositEvent{
		Key:         key,
		User:        user.Hex(),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
	}
	if d.version == V6 {
		commitment, err := asBigInt(values[2])
		if err != nil {
			return model.DepositEvent{}, fmt.Errorf("amount commitment: %w", err)
		}
		out.AmountCommitment = commitment.String()
	}
	return out, nil
}

// DecodeWithdraw decodes a Withdraw log.
func (d *Decoder) DecodeWithdraw(log types.Log) (model.WithdrawEvent, error) {
	key, user, _, err := d.decodeUserEvent("Withdraw", log)
	if err != nil {
		return model.WithdrawEvent{}, err
	}
	return model.WithdrawEvent{
		Key:         key,
		User:        user.Hex(),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
	}, nil
}

// DecodeClaim decodes a Claim log.
func (d *Decoder) DecodeClaim(log types.Log) (model.ClaimEvent, error) {
	key, user, _, err := d.decodeUserEvent("Claim", log)
	if err != nil {
		return model.ClaimEvent{}, err
	}
	return model.ClaimEvent{
		Key:         key,
		User:        user.Hex(),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
	}, nil
}

// DecodeBucketFilled decodes a v6 BucketFilled log.
func (d *Decoder) DecodeBucketFilled(log types.Log) (model.BucketFilledEvent, error) {
	if d.version != V6 {
		return model.BucketFilledEvent{}, fmt.Errorf("BucketFilled not in %s schema", d.version)
	}
	event := d.eventsABI.Events["BucketFilled"]
	if err := checkTopics(event, log, 1); err != nil {
		return model.BucketFilledEvent{}, err
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.BucketFilledEvent{}, fmt.Errorf("unpack BucketFilled: %w", err)
	}
	if len(values) != 2 {
		return model.BucketFilledEvent{}, fmt.Errorf("unexpected BucketFilled values: %d", len(values))
	}

	tick, side, err := tickAndSide(values[0], values[1])
	if err != nil {
		return model.BucketFilledEvent{}, err
	}

	return model.BucketFilledEvent{
		Key: model.PositionKey{
			PoolID: log.Topics[1],
			Tick:   tick,
			Side:   side,
		},
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
	}, nil
}

// DecodeRangeActivated decodes a v8 RangeActivated log.
func (d *Decoder) DecodeRangeActivated(log types.Log) (model.RangeActivatedEvent, error) {
	if d.version != V8 {
		return model.RangeActivatedEvent{}, fmt.Errorf("RangeActivated not in %s schema", d.version)
	}
	event := d.eventsABI.Events["RangeActivated"]
	if err := checkTopics(event, log, 1); err != nil {
		return model.RangeActivatedEvent{}, err
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.RangeActivatedEvent{}, fmt.Errorf("unpack RangeActivated: %w", err)
	}
	if len(values) != 3 {
		return model.RangeActivatedEvent{}, fmt.Errorf("unexpected RangeActivated values: %d", len(values))
	}

	fromBig, err := asBigInt(values[0])
	if err != nil {
		return model.RangeActivatedEvent{}, fmt.Errorf("fromTick: %w", err)
	}
	fromTick, err := int24FromBig(fromBig)
	if err != nil {
		return model.RangeActivatedEvent{}, fmt.Errorf("fromTick: %w", err)
	}
	toBig, err := asBigInt(values[1])
	if err != nil {
		return model.RangeActivatedEvent{}, fmt.Errorf("toTick: %w", err)
	}
	toTick, err := int24FromBig(toBig)
	if err != nil {
		return model.RangeActivatedEvent{}, fmt.Errorf("toTick: %w", err)
	}
	count, err := asBigInt(values[2])
	if err != nil {
		return model.RangeActivatedEvent{}, fmt.Errorf("countActivated: %w", err)
	}

	return model.RangeActivatedEvent{
		PoolID:         log.Topics[1],
		FromTick:       fromTick,
		ToTick:         toTick,
		CountActivated: count.Uint64(),
		BlockNumber:    log.BlockNumber,
		TxHash:         log.TxHash.Hex(),
		LogIndex:       uint64(log.Index),
	}, nil
}

// decodeUserEvent handles the shared (poolId, user, tick, side[, ...])
// shape of Deposit, Withdraw and Claim. It returns the raw non-indexed
// values so version-specific trailing fields can be picked off.
func (d *Decoder) decodeUserEvent(name string, log types.Log) (model.PositionKey, common.Address, []interface{}, error) {
	event, ok := d.eventsABI.Events[name]
	if !ok {
		return model.PositionKey{}, common.Address{}, nil, fmt.Errorf("event %s not in %s schema", name, d.version)
	}
	if err := checkTopics(event, log, 2); err != nil {
		return model.PositionKey{}, common.Address{}, nil, err
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.PositionKey{}, common.Address{}, nil, fmt.Errorf("unpack %s: %w", name, err)
	}
	want := 2
	if d.version == V6 {
		want = 3
	}
	if len(values) != want {
		return model.PositionKey{}, common.Address{}, nil, fmt.Errorf("unexpected %s values: %d", name, len(values))
	}

	tick, side, err := tickAndSide(values[0], values[1])
	if err != nil {
		return model.PositionKey{}, common.Address{}, nil, err
	}

	key := model.PositionKey{
		PoolID: log.Topics[1],
		Tick:   tick,
		Side:   side,
	}
	user := common.BytesToAddress(log.Topics[2].Bytes())
	return key, user, values, nil
}

func checkTopics(event abi.Event, log types.Log, indexed int) error {
	if len(log.Topics) != indexed+1 {
		return fmt.Errorf("expected %d topics for %s, got %d", indexed+1, event.Name, len(log.Topics))
	}
	if log.Topics[0] != event.ID {
		return fmt.Errorf("topic0 mismatch for %s: %s", event.Name, log.Topics[0].Hex())
	}
	return nil
}

func tickAndSide(tickValue, sideValue interface{}) (int32, model.Side, error) {
	tickBig, err := asBigInt(tickValue)
	if err != nil {
		return 0, 0, fmt.Errorf("tick: %w", err)
	}
	tick, err := int24FromBig(tickBig)
	if err != nil {
		return 0, 0, fmt.Errorf("tick: %w", err)
	}
	sideRaw, err := asUint8(sideValue)
	if err != nil {
		return 0, 0, fmt.Errorf("side: %w", err)
	}
	side := model.Side(sideRaw)
	if !side.Valid() {
		return 0, 0, fmt.Errorf("invalid side value: %d", sideRaw)
	}
	return tick, side, nil
}
