package reconcile

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"veilswap/internal/model"
)

// ErrSuperseded marks a reconciliation whose result arrived after a
// newer request had already started. The result is discarded, never
// applied.
var ErrSuperseded = errors.New("reconciliation superseded by newer request")

// Job produces one reconciliation result: typically an event fetch
// followed by a Reconciler pass.
type Job func(ctx context.Context) ([]model.ClaimableOrder, error)

// Coordinator enforces last-request-wins over reconciliation runs. Each
// run is tagged with a generation id; starting a new run cancels the
// previous one, and a run that finishes after being superseded reports
// ErrSuperseded instead of delivering a stale result.
type Coordinator struct {
	logger *zap.Logger

	mu         sync.Mutex
	generation uuid.UUID
	cancelPrev context.CancelFunc
}

// NewCoordinator builds a Coordinator.
func NewCoordinator(logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{logger: logger}
}

// Run executes the job under a fresh generation. The previous run, if
// still in flight, is cancelled.
func (c *Coordinator) Run(ctx context.Context, job Job) ([]model.ClaimableOrder, error) {
	generation := uuid.New()

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.cancelPrev != nil {
		c.cancelPrev()
	}
	c.generation = generation
	c.cancelPrev = cancel
	c.mu.Unlock()

	orders, err := job(runCtx)

	c.mu.Lock()
	current := c.generation
	if current == generation {
		c.cancelPrev = nil
	}
	c.mu.Unlock()
	cancel()

	if current != generation {
		c.logger.Debug("discarding superseded reconciliation",
			zap.String("generation", generation.String()),
		)
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	return orders, nil
}
