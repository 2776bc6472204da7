package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"veilswap/internal/model"
)

func TestCoordinatorRun(t *testing.T) {
	coord := NewCoordinator(nil)
	want := []model.ClaimableOrder{{Key: sellKey(100), TriggerBlock: 10}}

	got, err := coord.Run(context.Background(), func(_ context.Context) ([]model.ClaimableOrder, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Key != want[0].Key {
		t.Fatalf("orders mismatch: %+v", got)
	}
}

func TestCoordinatorJobError(t *testing.T) {
	coord := NewCoordinator(nil)
	boom := errors.New("boom")

	_, err := coord.Run(context.Background(), func(_ context.Context) ([]model.ClaimableOrder, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected job error, got %v", err)
	}
}

func TestCoordinatorSupersede(t *testing.T) {
	coord := NewCoordinator(nil)

	started := make(chan struct{})
	type result struct {
		orders []model.ClaimableOrder
		err    error
	}
	firstDone := make(chan result, 1)

	go func() {
		orders, err := coord.Run(context.Background(), func(ctx context.Context) ([]model.ClaimableOrder, error) {
			close(started)
			// Stall until the second run cancels this one.
			<-ctx.Done()
			return []model.ClaimableOrder{{Key: sellKey(100)}}, nil
		})
		firstDone <- result{orders, err}
	}()

	<-started
	want := []model.ClaimableOrder{{Key: sellKey(200), TriggerBlock: 99}}
	got, err := coord.Run(context.Background(), func(_ context.Context) ([]model.ClaimableOrder, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("newer run failed: %v", err)
	}
	if len(got) != 1 || got[0].Key != want[0].Key {
		t.Fatalf("newer run orders mismatch: %+v", got)
	}

	select {
	case first := <-firstDone:
		if !errors.Is(first.err, ErrSuperseded) {
			t.Fatalf("expected ErrSuperseded, got orders=%+v err=%v", first.orders, first.err)
		}
		if first.orders != nil {
			t.Fatalf("superseded run leaked a result: %+v", first.orders)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("superseded run never finished")
	}
}
