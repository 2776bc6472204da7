package engine

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"veilswap/internal/model"
)

// fakeCaller returns scripted eth_call responses keyed by method
// selector.
type fakeCaller struct {
	responses map[string][]byte
	err       error
	calls     int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for selector, resp := range f.responses {
		if bytes.HasPrefix(msg.Data, []byte(selector)) {
			return resp, nil
		}
	}
	return nil, errors.New("unexpected call")
}

func packOutputs(t *testing.T, method string, values ...interface{}) []byte {
	t.Helper()
	callsABI, err := CallsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	out, err := callsABI.Methods[method].Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s outputs: %v", method, err)
	}
	return out
}

func methodSelector(t *testing.T, method string) string {
	t.Helper()
	callsABI, err := CallsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	return string(callsABI.Methods[method].ID)
}

func TestProberReadPosition(t *testing.T) {
	realized, _ := new(big.Int).SetString("123456789123456789", 10)
	caller := &fakeCaller{responses: map[string][]byte{
		methodSelector(t, "position"): packOutputs(t, "position",
			big.NewInt(1000),
			big.NewInt(2000),
			big.NewInt(3000),
			realized,
		),
	}}

	prober := NewProber(caller, testEngine, nil)
	key := model.PositionKey{PoolID: testPoolID, Tick: -60, Side: model.Sell}

	state, err := prober.ReadPosition(context.Background(), key, testUser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Shares.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("shares mismatch: %s", state.Shares)
	}
	if state.RealizedProceeds.Cmp(realized) != 0 {
		t.Fatalf("realized proceeds mismatch: %s", state.RealizedProceeds)
	}
	if !state.HasProceeds() {
		t.Fatalf("nonzero handle must read as claimable")
	}
}

func TestProberReadPositionZeroHandle(t *testing.T) {
	caller := &fakeCaller{responses: map[string][]byte{
		methodSelector(t, "position"): packOutputs(t, "position",
			big.NewInt(1000),
			big.NewInt(0),
			big.NewInt(0),
			big.NewInt(0),
		),
	}}

	prober := NewProber(caller, testEngine, nil)
	key := model.PositionKey{PoolID: testPoolID, Tick: 60, Side: model.Buy}

	state, err := prober.ReadPosition(context.Background(), key, testUser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.HasProceeds() {
		t.Fatalf("zero handle must not read as claimable")
	}
}

func TestProberReadPositionUnavailable(t *testing.T) {
	caller := &fakeCaller{err: errors.New("connection refused")}
	prober := NewProber(caller, testEngine, nil)
	key := model.PositionKey{PoolID: testPoolID, Tick: 60, Side: model.Buy}

	_, err := prober.ReadPosition(context.Background(), key, testUser)
	if !errors.Is(err, ErrProbeUnavailable) {
		t.Fatalf("expected ErrProbeUnavailable, got %v", err)
	}
}

func TestProberReadPool(t *testing.T) {
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	caller := &fakeCaller{responses: map[string][]byte{
		methodSelector(t, "getPoolState"): packOutputs(t, "getPoolState",
			token0,
			token1,
			true,
			big.NewInt(2500),
			big.NewInt(-15),
		),
	}}

	pool, err := NewProber(caller, testEngine, nil).ReadPool(context.Background(), testPoolID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.Token0 != token0.Hex() || pool.Token1 != token1.Hex() {
		t.Fatalf("tokens mismatch: %+v", pool)
	}
	if !pool.Initialized || pool.ProtocolFee != 2500 || pool.CurrentTick != -15 {
		t.Fatalf("pool state mismatch: %+v", pool)
	}
}
