package orchestrate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"veilswap/internal/model"
)

// EngineWriter submits state-changing calls to the settlement engine.
type EngineWriter interface {
	Claim(ctx context.Context, key model.PositionKey) (common.Hash, error)
	Withdraw(ctx context.Context, key model.PositionKey, encryptedAmount *big.Int) (common.Hash, error)
}

// Encryptor encrypts plaintext amounts for write calls. Satisfied by
// the session manager.
type Encryptor interface {
	Encrypt(ctx context.Context, identity string, value *big.Int, typ string) (string, error)
}

// Outcome records one order the batch actually attempted. TxHash is
// set only when the engine accepted the write.
type Outcome struct {
	Key    model.PositionKey
	TxHash common.Hash
	Err    error
}

// Summary reports the outcome of one batch. Partial success is the
// normal case: a failing order is recorded and the batch continues.
// Orders the batch never reached, because the context was cancelled,
// do not appear at all.
type Summary struct {
	Succeeded int
	Attempted []Outcome
}

// Failures returns the attempted orders that failed.
func (s Summary) Failures() []Outcome {
	var failed []Outcome
	for _, out := range s.Attempted {
		if out.Err != nil {
			failed = append(failed, out)
		}
	}
	return failed
}

// Orchestrator drives claim and withdraw batches. Writes run strictly
// sequentially: each engine write can change state the next call reads,
// and the engine does not promise safe concurrent mutation by one
// caller.
type Orchestrator struct {
	writer    EngineWriter
	encryptor Encryptor
	refresh   func(ctx context.Context) error
	logger    *zap.Logger
}

// NewOrchestrator builds an Orchestrator. refresh is invoked after each
// batch so the caller re-reconciles instead of patching the previous
// projection in place; it may be nil.
func NewOrchestrator(writer EngineWriter, encryptor Encryptor, refresh func(ctx context.Context) error, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{writer: writer, encryptor: encryptor, refresh: refresh, logger: logger}
}

// ClaimAll claims every order in sequence, accumulating per-order
// failures without stopping the batch.
func (o *Orchestrator) ClaimAll(ctx context.Context, orders []model.ClaimableOrder) Summary {
	var summary Summary
	for i, order := range orders {
		select {
		case <-ctx.Done():
			o.logger.Warn("claim batch interrupted",
				zap.Int("remaining", len(orders)-i),
				zap.Error(ctx.Err()),
			)
			return summary
		default:
		}

		txHash, err := o.writer.Claim(ctx, order.Key)
		if err != nil {
			o.logger.Warn("claim failed",
				zap.String("key", order.Key.String()),
				zap.Error(err),
			)
			summary.Attempted = append(summary.Attempted, Outcome{Key: order.Key, Err: err})
			continue
		}

		o.logger.Info("claimed",
			zap.String("key", order.Key.String()),
			zap.String("tx", txHash.Hex()),
		)
		summary.Attempted = append(summary.Attempted, Outcome{Key: order.Key, TxHash: txHash})
		summary.Succeeded++
	}

	o.refreshAfterBatch(ctx)
	return summary
}

// WithdrawAll withdraws the given plaintext amount from each order,
// encrypting it per call through the privacy session.
func (o *Orchestrator) WithdrawAll(ctx context.Context, identity string, orders []model.ClaimableOrder, amount *big.Int, amountType string) Summary {
	var summary Summary
	for i, order := range orders {
		select {
		case <-ctx.Done():
			o.logger.Warn("withdraw batch interrupted",
				zap.Int("remaining", len(orders)-i),
				zap.Error(ctx.Err()),
			)
			return summary
		default:
		}

		ciphertext, err := o.encryptor.Encrypt(ctx, identity, amount, amountType)
		if err != nil {
			summary.Attempted = append(summary.Attempted, Outcome{Key: order.Key, Err: err})
			continue
		}
		handle, ok := new(big.Int).SetString(ciphertext, 0)
		if !ok {
			summary.Attempted = append(summary.Attempted, Outcome{Key: order.Key, Err: fmt.Errorf("encrypt returned non-numeric handle: %q", ciphertext)})
			continue
		}

		txHash, err := o.writer.Withdraw(ctx, order.Key, handle)
		if err != nil {
			o.logger.Warn("withdraw failed",
				zap.String("key", order.Key.String()),
				zap.Error(err),
			)
			summary.Attempted = append(summary.Attempted, Outcome{Key: order.Key, Err: err})
			continue
		}

		o.logger.Info("withdrawn",
			zap.String("key", order.Key.String()),
			zap.String("tx", txHash.Hex()),
		)
		summary.Attempted = append(summary.Attempted, Outcome{Key: order.Key, TxHash: txHash})
		summary.Succeeded++
	}

	o.refreshAfterBatch(ctx)
	return summary
}

func (o *Orchestrator) refreshAfterBatch(ctx context.Context) {
	if o.refresh == nil {
		return
	}
	if err := o.refresh(ctx); err != nil {
		o.logger.Warn("post-batch reconciliation failed", zap.Error(err))
	}
}
