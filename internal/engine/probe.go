package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"veilswap/internal/model"
)

// ContractCaller is the read capability the prober needs.
// *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Prober performs direct point reads against the settlement engine.
type Prober struct {
	chain    ContractCaller
	contract common.Address
	logger   *zap.Logger
}

// NewProber builds a prober for one engine deployment.
func NewProber(chainClient ContractCaller, contract common.Address, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{chain: chainClient, contract: contract, logger: logger}
}

// ReadPosition reads a position's current slots. All amounts come back
// as ciphertext handles. Failures wrap ErrProbeUnavailable so callers
// can degrade a single position without aborting the batch.
func (p *Prober) ReadPosition(ctx context.Context, key model.PositionKey, user common.Address) (model.PositionState, error) {
	values, err := p.call(ctx, "position", key.PoolID, user, big.NewInt(int64(key.Tick)), uint8(key.Side))
	if err != nil {
		p.logger.Warn("position probe failed",
			zap.String("key", key.String()),
			zap.String("user", user.Hex()),
			zap.Error(err),
		)
		return model.PositionState{}, fmt.Errorf("%w: %s: %v", ErrProbeUnavailable, key, err)
	}
	if len(values) != 4 {
		return model.PositionState{}, fmt.Errorf("%w: %s: unexpected position values: %d", ErrProbeUnavailable, key, len(values))
	}

	var state model.PositionState
	if state.Shares, err = asBigInt(values[0]); err != nil {
		return model.PositionState{}, fmt.Errorf("%w: shares: %v", ErrProbeUnavailable, err)
	}
	if state.ProceedsSnapshot, err = asBigInt(values[1]); err != nil {
		return model.PositionState{}, fmt.Errorf("%w: proceeds snapshot: %v", ErrProbeUnavailable, err)
	}
	if state.FilledSnapshot, err = asBigInt(values[2]); err != nil {
		return model.PositionState{}, fmt.Errorf("%w: filled snapshot: %v", ErrProbeUnavailable, err)
	}
	if state.RealizedProceeds, err = asBigInt(values[3]); err != nil {
		return model.PositionState{}, fmt.Errorf("%w: realized proceeds: %v", ErrProbeUnavailable, err)
	}
	return state, nil
}

// ReadPool reads pool metadata and the current tick.
func (p *Prober) ReadPool(ctx context.Context, poolID common.Hash) (model.PoolState, error) {
	values, err := p.call(ctx, "getPoolState", poolID)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("read pool %s: %w", poolID.Hex(), err)
	}
	if len(values) != 5 {
		return model.PoolState{}, fmt.Errorf("unexpected pool state values: %d", len(values))
	}

	token0, err := asAddress(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := asAddress(values[1])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("token1: %w", err)
	}
	initialized, err := asBool(values[2])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("initialized: %w", err)
	}
	feeBig, err := asBigInt(values[3])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("protocol fee: %w", err)
	}
	tickBig, err := asBigInt(values[4])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("current tick: %w", err)
	}
	tick, err := int24FromBig(tickBig)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("current tick: %w", err)
	}

	return model.PoolState{
		Token0:      token0.Hex(),
		Token1:      token1.Hex(),
		Initialized: initialized,
		ProtocolFee: uint32(feeBig.Uint64()),
		CurrentTick: tick,
	}, nil
}

func (p *Prober) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	callsABI, err := CallsABI()
	if err != nil {
		return nil, fmt.Errorf("parse calls abi: %w", err)
	}
	data, err := callsABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &p.contract, Data: data}
	resp, err := p.chain.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := callsABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}
