package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"veilswap/internal/engine"
	"veilswap/internal/model"
)

// ProbeFunc reads the live engine state for one position. Injected so
// reconciliation stays pure aside from these calls.
type ProbeFunc func(ctx context.Context, key model.PositionKey) (model.PositionState, error)

// Input is everything one reconciliation pass consumes.
type Input struct {
	Events  model.EventSet
	Version engine.Version

	// Probe is required under V8, where fill notifications are not
	// keyed by position and live state confirms claimability.
	Probe ProbeFunc

	// PoolTicks carries the current tick per pool for the geometric
	// maker/taker fallback. Optional; positions on pools without a tick
	// default to maker.
	PoolTicks map[common.Hash]int32
}

// Reconciler replays the ledger event log into the set of claimable
// orders. Two passes over the same events, even reordered, produce the
// same set: all grouping is keyed by the position triple, duplicate
// deposits reduce to the earliest, and fill blocks reduce to the
// minimum.
type Reconciler struct {
	logger *zap.Logger
}

// NewReconciler builds a Reconciler.
func NewReconciler(logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{logger: logger}
}

// Reconcile derives the de-duplicated claimable orders from one event
// set.
func (r *Reconciler) Reconcile(ctx context.Context, in Input) ([]model.ClaimableOrder, error) {
	switch in.Version {
	case engine.V6:
		return r.reconcileV6(in)
	case engine.V8:
		if in.Probe == nil {
			return nil, fmt.Errorf("probe is required for %s reconciliation", in.Version)
		}
		return r.reconcileV8(ctx, in)
	default:
		return nil, fmt.Errorf("unsupported engine version: %d", in.Version)
	}
}

// reconcileV6 uses per-bucket fill notifications: a position is
// claimable iff its bucket filled and the position was not retired.
func (r *Reconciler) reconcileV6(in Input) ([]model.ClaimableOrder, error) {
	// Earliest fill block wins: a bucket may notify more than once and
	// the first fill is what makes resting deposits claimable.
	filled := make(map[model.PositionKey]uint64)
	for _, fill := range in.Events.BucketFills {
		if block, ok := filled[fill.Key]; !ok || fill.BlockNumber < block {
			filled[fill.Key] = fill.BlockNumber
		}
	}

	retired := retiredPositions(in.Events)

	orders := make([]model.ClaimableOrder, 0)
	for _, deposit := range dedupDeposits(in.Events.Deposits) {
		fillBlock, ok := filled[deposit.Key]
		if !ok {
			continue
		}
		if _, ok := retired[deposit.Key]; ok {
			continue
		}
		orders = append(orders, model.ClaimableOrder{
			Key:          deposit.Key,
			OrderType:    classifyGeometric(deposit.Key, in.PoolTicks),
			Price:        approximatePrice(deposit.Key.Tick),
			DepositBlock: deposit.BlockNumber,
			TriggerBlock: fillBlock,
			DepositTx:    deposit.TxHash,
		})
	}

	sortOrders(orders)
	return orders, nil
}

// reconcileV8 uses range activations as a classification hint and live
// position reads as the claimability source of truth.
func (r *Reconciler) reconcileV8(ctx context.Context, in Input) ([]model.ClaimableOrder, error) {
	retired := retiredPositions(in.Events)
	ranges := normalizeRanges(in.Events.RangeActivations)

	orders := make([]model.ClaimableOrder, 0)
	for _, deposit := range dedupDeposits(in.Events.Deposits) {
		if _, ok := retired[deposit.Key]; ok {
			continue
		}

		state, err := in.Probe(ctx, deposit.Key)
		if err != nil {
			if errors.Is(err, engine.ErrProbeUnavailable) {
				// One bad probe must not hide every other claim.
				r.logger.Warn("probe failed, treating as not claimable",
					zap.String("key", deposit.Key.String()),
					zap.Error(err),
				)
				continue
			}
			return nil, err
		}
		if !state.HasProceeds() {
			continue
		}

		orderType, triggerBlock, matched := classifyByRanges(deposit.Key, ranges)
		if !matched {
			orderType = classifyGeometric(deposit.Key, in.PoolTicks)
			triggerBlock = deposit.BlockNumber
		}

		orders = append(orders, model.ClaimableOrder{
			Key:          deposit.Key,
			OrderType:    orderType,
			Price:        approximatePrice(deposit.Key.Tick),
			DepositBlock: deposit.BlockNumber,
			TriggerBlock: triggerBlock,
			DepositTx:    deposit.TxHash,
		})
	}

	sortOrders(orders)
	return orders, nil
}

// retiredPositions is the union of claimed and withdrawn keys; either
// action retires the position.
func retiredPositions(set model.EventSet) map[model.PositionKey]struct{} {
	retired := make(map[model.PositionKey]struct{}, len(set.Claims)+len(set.Withdraws))
	for _, claim := range set.Claims {
		retired[claim.Key] = struct{}{}
	}
	for _, withdraw := range set.Withdraws {
		retired[withdraw.Key] = struct{}{}
	}
	return retired
}

// dedupDeposits keeps one deposit per position key, reducing duplicates
// to the earliest block (ties broken by log index) so the result does
// not depend on event order. The output is sorted by key for a stable
// probe order.
func dedupDeposits(deposits []model.DepositEvent) []model.DepositEvent {
	byKey := make(map[model.PositionKey]model.DepositEvent, len(deposits))
	for _, deposit := range deposits {
		existing, ok := byKey[deposit.Key]
		if !ok ||
			deposit.BlockNumber < existing.BlockNumber ||
			(deposit.BlockNumber == existing.BlockNumber && deposit.LogIndex < existing.LogIndex) {
			byKey[deposit.Key] = deposit
		}
	}

	out := make([]model.DepositEvent, 0, len(byKey))
	for _, deposit := range byKey {
		out = append(out, deposit)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.Less(out[j].Key)
	})
	return out
}

// tickRange is a normalized activation range: From <= To.
type tickRange struct {
	From  int32
	To    int32
	Block uint64
}

// normalizeRanges groups activation ranges by pool, normalizing each to
// min/max order since the engine reports them in crossing direction.
func normalizeRanges(activations []model.RangeActivatedEvent) map[common.Hash][]tickRange {
	ranges := make(map[common.Hash][]tickRange)
	for _, activation := range activations {
		from, to := activation.FromTick, activation.ToTick
		if from > to {
			from, to = to, from
		}
		ranges[activation.PoolID] = append(ranges[activation.PoolID], tickRange{
			From:  from,
			To:    to,
			Block: activation.BlockNumber,
		})
	}
	return ranges
}

// classifyByRanges marks a position as taker when its tick falls inside
// any activation range for its pool. When several ranges match, the
// most recent block is the trigger.
func classifyByRanges(key model.PositionKey, ranges map[common.Hash][]tickRange) (model.OrderType, uint64, bool) {
	var (
		matched      bool
		triggerBlock uint64
	)
	for _, r := range ranges[key.PoolID] {
		if key.Tick >= r.From && key.Tick <= r.To {
			if !matched || r.Block > triggerBlock {
				triggerBlock = r.Block
			}
			matched = true
		}
	}
	if !matched {
		return model.Maker, 0, false
	}
	return model.Taker, triggerBlock, true
}

// classifyGeometric applies the placement-geometry rule: a SELL above
// the current price rests as a maker, at or below it fills immediately
// as a taker; BUY is the mirror image. Without a current tick for the
// pool the position defaults to maker.
func classifyGeometric(key model.PositionKey, poolTicks map[common.Hash]int32) model.OrderType {
	currentTick, ok := poolTicks[key.PoolID]
	if !ok {
		return model.Maker
	}
	switch key.Side {
	case model.Sell:
		if key.Tick > currentTick {
			return model.Maker
		}
		return model.Taker
	case model.Buy:
		if key.Tick < currentTick {
			return model.Maker
		}
		return model.Taker
	default:
		return model.Maker
	}
}

// sortOrders orders most recently actionable first, with a stable key
// tie-break so equal trigger blocks keep a deterministic order.
func sortOrders(orders []model.ClaimableOrder) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].TriggerBlock != orders[j].TriggerBlock {
			return orders[i].TriggerBlock > orders[j].TriggerBlock
		}
		return orders[i].Key.Less(orders[j].Key)
	})
}

// approximatePrice renders the tick as a human-readable price. Ticks
// are exponents of 1.0001, so this is an approximation for display,
// never an accounting value.
func approximatePrice(tick int32) string {
	return strconv.FormatFloat(math.Pow(1.0001, float64(tick)), 'g', 8, 64)
}
