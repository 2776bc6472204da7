package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"veilswap/internal/engine"
	"veilswap/internal/model"
)

// LogReader is the chain capability the source needs. *chain.Client
// satisfies it.
type LogReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error)
}

// SourceConfig holds runtime settings for the event source.
type SourceConfig struct {
	Contract     common.Address
	MaxWindow    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Source fetches the append-only ledger events for one user and pool.
// The four sub-queries run concurrently; failure of any one fails the
// whole fetch so callers never observe an inconsistent partial view.
type Source struct {
	cfg     SourceConfig
	chain   LogReader
	decoder *engine.Decoder
	logger  *zap.Logger
}

// NewSource builds a Source for one engine schema version.
func NewSource(cfg SourceConfig, chainClient LogReader, decoder *engine.Decoder, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{cfg: cfg, chain: chainClient, decoder: decoder, logger: logger}
}

// Fetch returns all deposit, claim, withdraw and fill-notification
// events for the user on the pool in [fromBlock, toBlock]. A toBlock of
// zero means latest. The range is clamped to the configured window.
func (s *Source) Fetch(ctx context.Context, poolID common.Hash, user common.Address, fromBlock, toBlock uint64) (model.EventSet, error) {
	if s.chain == nil {
		return model.EventSet{}, fmt.Errorf("chain client is nil")
	}
	if s.decoder == nil {
		return model.EventSet{}, fmt.Errorf("decoder is nil")
	}

	if toBlock == 0 {
		latest, err := s.chain.LatestBlockNumber(ctx)
		if err != nil {
			return model.EventSet{}, fmt.Errorf("get latest block: %w", err)
		}
		toBlock = latest
	}
	fromBlock, toBlock, err := ClampWindow(fromBlock, toBlock, s.cfg.MaxWindow)
	if err != nil {
		return model.EventSet{}, err
	}

	s.logger.Debug("fetch events",
		zap.String("pool", poolID.Hex()),
		zap.String("user", user.Hex()),
		zap.Uint64("from", fromBlock),
		zap.Uint64("to", toBlock),
		zap.String("version", s.decoder.Version().String()),
	)

	userTopic := common.BytesToHash(user.Bytes())
	set := model.EventSet{FromBlock: fromBlock, ToBlock: toBlock}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logs, err := s.fetchUserLogs(groupCtx, "Deposit", poolID, userTopic, fromBlock, toBlock)
		if err != nil {
			return err
		}
		deposits := make([]model.DepositEvent, 0, len(logs))
		for _, log := range logs {
			event, err := s.decoder.DecodeDeposit(log)
			if err != nil {
				return fmt.Errorf("decode deposit %s: %w", log.TxHash.Hex(), err)
			}
			deposits = append(deposits, event)
		}
		set.Deposits = deposits
		return nil
	})

	group.Go(func() error {
		logs, err := s.fetchUserLogs(groupCtx, "Claim", poolID, userTopic, fromBlock, toBlock)
		if err != nil {
			return err
		}
		claims := make([]model.ClaimEvent, 0, len(logs))
		for _, log := range logs {
			event, err := s.decoder.DecodeClaim(log)
			if err != nil {
				return fmt.Errorf("decode claim %s: %w", log.TxHash.Hex(), err)
			}
			claims = append(claims, event)
		}
		set.Claims = claims
		return nil
	})

	group.Go(func() error {
		logs, err := s.fetchUserLogs(groupCtx, "Withdraw", poolID, userTopic, fromBlock, toBlock)
		if err != nil {
			return err
		}
		withdraws := make([]model.WithdrawEvent, 0, len(logs))
		for _, log := range logs {
			event, err := s.decoder.DecodeWithdraw(log)
			if err != nil {
				return fmt.Errorf("decode withdraw %s: %w", log.TxHash.Hex(), err)
			}
			withdraws = append(withdraws, event)
		}
		set.Withdraws = withdraws
		return nil
	})

	group.Go(func() error {
		return s.fetchFills(groupCtx, poolID, fromBlock, toBlock, &set)
	})

	if err := group.Wait(); err != nil {
		return model.EventSet{}, err
	}
	return set, nil
}

// fetchUserLogs queries one event type filtered by pool and user.
func (s *Source) fetchUserLogs(ctx context.Context, name string, poolID, userTopic common.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	topic0, err := s.decoder.Topic(name)
	if err != nil {
		return nil, err
	}
	topics := [][]common.Hash{{topic0}, {poolID}, {userTopic}}
	return s.filterLogsWithRetry(ctx, name, topics, fromBlock, toBlock)
}

// fetchFills queries the fill notifications, which are not keyed by
// user: BucketFilled under v6, RangeActivated under v8.
func (s *Source) fetchFills(ctx context.Context, poolID common.Hash, fromBlock, toBlock uint64, set *model.EventSet) error {
	name := s.decoder.FillEventName()
	topic0, err := s.decoder.Topic(name)
	if err != nil {
		return err
	}
	topics := [][]common.Hash{{topic0}, {poolID}}
	logs, err := s.filterLogsWithRetry(ctx, name, topics, fromBlock, toBlock)
	if err != nil {
		return err
	}

	switch s.decoder.Version() {
	case engine.V6:
		fills := make([]model.BucketFilledEvent, 0, len(logs))
		for _, log := range logs {
			event, err := s.decoder.DecodeBucketFilled(log)
			if err != nil {
				return fmt.Errorf("decode bucket fill %s: %w", log.TxHash.Hex(), err)
			}
			fills = append(fills, event)
		}
		set.BucketFills = fills
	case engine.V8:
		activations := make([]model.RangeActivatedEvent, 0, len(logs))
		for _, log := range logs {
			event, err := s.decoder.DecodeRangeActivated(log)
			if err != nil {
				return fmt.Errorf("decode range activation %s: %w", log.TxHash.Hex(), err)
			}
			activations = append(activations, event)
		}
		set.RangeActivations = activations
	}
	return nil
}

func (s *Source) filterLogsWithRetry(ctx context.Context, name string, topics [][]common.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = s.chain.FilterLogs(ctx, fromBlock, toBlock, []common.Address{s.cfg.Contract}, topics)
		if err != nil {
			s.logger.Warn("filter logs failed",
				zap.String("event", name),
				zap.Uint64("from", fromBlock),
				zap.Uint64("to", toBlock),
				zap.Error(err),
			)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s logs: %w", name, err)
	}
	return logs, nil
}
