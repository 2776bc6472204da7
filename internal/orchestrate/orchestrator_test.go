package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"veilswap/internal/model"
)

type fakeWriter struct {
	mu       sync.Mutex
	inFlight int
	order    []model.PositionKey
	failKeys map[model.PositionKey]error

	// afterWrite runs after each write completes, outside the lock.
	afterWrite func(n int)
}

func (w *fakeWriter) Claim(_ context.Context, key model.PositionKey) (common.Hash, error) {
	return w.record(key)
}

func (w *fakeWriter) Withdraw(_ context.Context, key model.PositionKey, _ *big.Int) (common.Hash, error) {
	return w.record(key)
}

// record fails the test's invariant if two writes ever overlap.
func (w *fakeWriter) record(key model.PositionKey) (common.Hash, error) {
	w.mu.Lock()
	w.inFlight++
	overlapped := w.inFlight > 1
	w.order = append(w.order, key)
	err := w.failKeys[key]
	w.inFlight--
	n := len(w.order)
	w.mu.Unlock()

	if w.afterWrite != nil {
		w.afterWrite(n)
	}
	if overlapped {
		return common.Hash{}, errors.New("concurrent write detected")
	}
	if err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash(fmt.Sprintf("0x%x", len(w.order))), nil
}

type fakeEncryptor struct {
	calls int
	err   error
}

func (e *fakeEncryptor) Encrypt(_ context.Context, _ string, value *big.Int, _ string) (string, error) {
	e.calls++
	if e.err != nil {
		return "", e.err
	}
	return "0x" + value.Text(16), nil
}

func orderFor(tick int32) model.ClaimableOrder {
	return model.ClaimableOrder{
		Key: model.PositionKey{
			PoolID: common.HexToHash("0x01"),
			Tick:   tick,
			Side:   model.Sell,
		},
	}
}

func TestClaimAllSequentialOrder(t *testing.T) {
	writer := &fakeWriter{}
	orders := []model.ClaimableOrder{orderFor(100), orderFor(200), orderFor(300)}

	summary := NewOrchestrator(writer, nil, nil, nil).ClaimAll(context.Background(), orders)
	if summary.Succeeded != 3 || len(summary.Failures()) != 0 {
		t.Fatalf("summary mismatch: %+v", summary)
	}

	for i, order := range orders {
		if writer.order[i] != order.Key {
			t.Fatalf("write %d out of order: %s", i, writer.order[i])
		}
		if summary.Attempted[i].Key != order.Key || summary.Attempted[i].TxHash == (common.Hash{}) {
			t.Fatalf("outcome %d incomplete: %+v", i, summary.Attempted[i])
		}
	}
}

func TestClaimAllPartialSuccess(t *testing.T) {
	bad := orderFor(200)
	writer := &fakeWriter{
		failKeys: map[model.PositionKey]error{bad.Key: errors.New("execution reverted")},
	}
	orders := []model.ClaimableOrder{orderFor(100), bad, orderFor(300)}

	summary := NewOrchestrator(writer, nil, nil, nil).ClaimAll(context.Background(), orders)
	if summary.Succeeded != 2 {
		t.Fatalf("expected 2 claims, got %d", summary.Succeeded)
	}
	failures := summary.Failures()
	if len(failures) != 1 || failures[0].Key != bad.Key {
		t.Fatalf("failures mismatch: %+v", failures)
	}
	if failures[0].TxHash != (common.Hash{}) {
		t.Fatalf("failed order must not carry a tx hash: %+v", failures[0])
	}
	// The failing order must not stop the orders after it.
	if len(writer.order) != 3 {
		t.Fatalf("expected 3 write attempts, got %d", len(writer.order))
	}
}

func TestClaimAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	writer := &fakeWriter{}
	summary := NewOrchestrator(writer, nil, nil, nil).ClaimAll(ctx, []model.ClaimableOrder{orderFor(100)})
	if summary.Succeeded != 0 || len(summary.Attempted) != 0 {
		t.Fatalf("cancelled batch must report nothing attempted: %+v", summary)
	}
	if len(writer.order) != 0 {
		t.Fatalf("cancelled batch must not write")
	}
}

func TestClaimAllCancelMidBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := &fakeWriter{}
	writer.afterWrite = func(n int) {
		if n == 1 {
			cancel()
		}
	}
	orders := []model.ClaimableOrder{orderFor(100), orderFor(200), orderFor(300)}

	summary := NewOrchestrator(writer, nil, nil, nil).ClaimAll(ctx, orders)
	if len(writer.order) != 1 {
		t.Fatalf("expected 1 write before cancellation, got %d", len(writer.order))
	}
	// Orders the batch never reached must not surface as outcomes,
	// succeeded or failed.
	if summary.Succeeded != 1 || len(summary.Attempted) != 1 {
		t.Fatalf("summary mismatch: %+v", summary)
	}
	if summary.Attempted[0].Key != orders[0].Key || summary.Attempted[0].TxHash == (common.Hash{}) {
		t.Fatalf("outcome mismatch: %+v", summary.Attempted[0])
	}
}

func TestClaimAllRefreshesAfterBatch(t *testing.T) {
	refreshed := 0
	refresh := func(_ context.Context) error {
		refreshed++
		return nil
	}

	writer := &fakeWriter{}
	NewOrchestrator(writer, nil, refresh, nil).ClaimAll(context.Background(), []model.ClaimableOrder{orderFor(100)})
	if refreshed != 1 {
		t.Fatalf("expected 1 refresh, got %d", refreshed)
	}

	// Refresh runs even when every order failed; the projection must
	// reflect whatever the chain now says.
	writer = &fakeWriter{failKeys: map[model.PositionKey]error{orderFor(100).Key: errors.New("boom")}}
	NewOrchestrator(writer, nil, refresh, nil).ClaimAll(context.Background(), []model.ClaimableOrder{orderFor(100)})
	if refreshed != 2 {
		t.Fatalf("expected refresh after failed batch, got %d", refreshed)
	}
}

func TestWithdrawAllEncryptsPerOrder(t *testing.T) {
	writer := &fakeWriter{}
	encryptor := &fakeEncryptor{}
	orders := []model.ClaimableOrder{orderFor(100), orderFor(200)}

	summary := NewOrchestrator(writer, encryptor, nil, nil).
		WithdrawAll(context.Background(), "0xabc", orders, big.NewInt(5000), "uint128")
	if summary.Succeeded != 2 || len(summary.Failures()) != 0 {
		t.Fatalf("summary mismatch: %+v", summary)
	}
	if encryptor.calls != 2 {
		t.Fatalf("expected one encrypt per order, got %d", encryptor.calls)
	}
}

func TestWithdrawAllEncryptFailure(t *testing.T) {
	writer := &fakeWriter{}
	encryptor := &fakeEncryptor{err: errors.New("no active privacy session")}

	summary := NewOrchestrator(writer, encryptor, nil, nil).
		WithdrawAll(context.Background(), "0xabc", []model.ClaimableOrder{orderFor(100)}, big.NewInt(1), "uint128")
	if summary.Succeeded != 0 || len(summary.Failures()) != 1 {
		t.Fatalf("summary mismatch: %+v", summary)
	}
	if len(writer.order) != 0 {
		t.Fatalf("failed encryption must not reach the engine")
	}
}
