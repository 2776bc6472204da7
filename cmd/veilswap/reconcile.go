package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"veilswap/internal/chain"
	"veilswap/internal/config"
	"veilswap/internal/engine"
	"veilswap/internal/events"
	"veilswap/internal/model"
	"veilswap/internal/reconcile"
	"veilswap/internal/storage"
	"veilswap/internal/storage/postgres"
)

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReconcile(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setup, err := newReconcileSetup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer setup.Close()

	orders, err := setup.runOnce(ctx)
	if err != nil {
		return err
	}

	logger.Info("reconciliation complete", zap.Int("claimable", len(orders)))

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(orders); err != nil {
		return fmt.Errorf("encode orders: %w", err)
	}

	return setup.persist(ctx, orders)
}

// reconcileSetup wires the fetch-reconcile pipeline shared by the
// reconcile and claim subcommands.
type reconcileSetup struct {
	cfg        config.ReconcileConfig
	logger     *zap.Logger
	chain      *chain.Client
	source     *events.Source
	prober     *engine.Prober
	reconciler *reconcile.Reconciler
	coord      *reconcile.Coordinator
	version    engine.Version
	engineAddr common.Address
	poolID     common.Hash
	user       common.Address
	sink       storage.Sink
	store      *postgres.Store

	lastScanned uint64
}

func newReconcileSetup(ctx context.Context, cfg config.ReconcileConfig, logger *zap.Logger) (*reconcileSetup, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.EngineAddress) {
		return nil, fmt.Errorf("invalid engine address: %s", cfg.EngineAddress)
	}
	if !common.IsHexAddress(cfg.User) {
		return nil, fmt.Errorf("invalid user address: %s", cfg.User)
	}
	if cfg.Pool == "" {
		return nil, fmt.Errorf("pool id is required")
	}
	version, err := engine.ParseVersion(cfg.EngineVersion)
	if err != nil {
		return nil, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	decoder, err := engine.NewDecoder(version)
	if err != nil {
		chainClient.Close()
		return nil, err
	}

	engineAddr := common.HexToAddress(cfg.EngineAddress)
	setup := &reconcileSetup{
		cfg:    cfg,
		logger: logger,
		chain:  chainClient,
		source: events.NewSource(events.SourceConfig{
			Contract:     engineAddr,
			MaxWindow:    cfg.MaxWindow,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, chainClient, decoder, logger),
		prober:     engine.NewProber(chainClient, engineAddr, logger),
		reconciler: reconcile.NewReconciler(logger),
		coord:      reconcile.NewCoordinator(logger),
		version:    version,
		engineAddr: engineAddr,
		poolID:     common.HexToHash(cfg.Pool),
		user:       common.HexToAddress(cfg.User),
	}

	if cfg.Out != "" {
		setup.sink = storage.NewJsonlSink(cfg.Out)
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			chainClient.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		setup.store = store
	}

	return setup, nil
}

func (s *reconcileSetup) Close() {
	if s.store != nil {
		s.store.Close()
	}
	s.chain.Close()
}

// runOnce performs one fetch + reconcile pass under the coordinator's
// last-request-wins discipline.
func (s *reconcileSetup) runOnce(ctx context.Context) ([]model.ClaimableOrder, error) {
	if s.store != nil {
		if block, ok, err := s.store.LoadScanState(ctx, s.user.Hex(), s.poolID.Hex()); err != nil {
			s.logger.Warn("load scan state failed", zap.Error(err))
		} else if ok {
			s.logger.Debug("previous snapshot coverage", zap.Uint64("last_scanned", block))
		}
	}

	return s.coord.Run(ctx, func(ctx context.Context) ([]model.ClaimableOrder, error) {
		set, err := s.source.Fetch(ctx, s.poolID, s.user, s.cfg.FromBlock, s.cfg.ToBlock)
		if err != nil {
			return nil, fmt.Errorf("fetch events: %w", err)
		}
		s.lastScanned = set.ToBlock

		poolTicks := make(map[common.Hash]int32)
		if pool, err := s.prober.ReadPool(ctx, s.poolID); err == nil {
			poolTicks[s.poolID] = pool.CurrentTick
		} else {
			s.logger.Warn("pool state read failed, classification falls back to maker",
				zap.String("pool", s.poolID.Hex()),
				zap.Error(err),
			)
		}

		return s.reconciler.Reconcile(ctx, reconcile.Input{
			Events:  set,
			Version: s.version,
			Probe: func(ctx context.Context, key model.PositionKey) (model.PositionState, error) {
				return s.prober.ReadPosition(ctx, key, s.user)
			},
			PoolTicks: poolTicks,
		})
	})
}

// persist writes the snapshot to the optional sinks and advances the
// scan state.
func (s *reconcileSetup) persist(ctx context.Context, orders []model.ClaimableOrder) error {
	if s.sink != nil {
		if err := s.sink.PutOrderSnapshot(orders); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	if s.store != nil {
		if err := s.store.ReplaceOrderSnapshot(ctx, s.user.Hex(), orders); err != nil {
			return fmt.Errorf("store snapshot: %w", err)
		}
		if s.lastScanned > 0 {
			if err := s.store.SaveScanState(ctx, s.user.Hex(), s.poolID.Hex(), s.lastScanned); err != nil {
				return fmt.Errorf("save scan state: %w", err)
			}
		}
	}
	return nil
}
