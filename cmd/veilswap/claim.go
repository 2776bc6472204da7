package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"veilswap/internal/config"
	"veilswap/internal/engine"
	"veilswap/internal/fhe"
	"veilswap/internal/orchestrate"
	"veilswap/internal/storage/postgres"
)

func runClaim(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadClaim(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PrivateKey == "" {
		return fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setup, err := newReconcileSetup(ctx, cfg.ReconcileConfig, logger)
	if err != nil {
		return err
	}
	defer setup.Close()

	writer, err := engine.NewWriter(ctx, setup.chain, setup.engineAddr, key, logger)
	if err != nil {
		return err
	}

	var encryptor orchestrate.Encryptor
	if cfg.FheURL != "" {
		chainID, err := setup.chain.GetChainID(ctx)
		if err != nil {
			return fmt.Errorf("get chain id: %w", err)
		}
		manager := fhe.NewManager(fhe.ManagerConfig{
			ChainID:         chainID.Uint64(),
			SessionTTL:      cfg.SessionTTL,
			DecryptAttempts: cfg.DecryptAttempts,
		}, fhe.NewClient(cfg.FheURL, cfg.FheTimeout, logger), logger)
		if _, err := manager.Authorize(ctx, setup.user.Hex()); err != nil {
			return fmt.Errorf("authorize privacy session: %w", err)
		}
		encryptor = manager
	}

	orders, err := setup.runOnce(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		logger.Info("nothing to claim")
		return nil
	}

	logger.Info("claim batch start", zap.Int("orders", len(orders)))

	orchestrator := orchestrate.NewOrchestrator(writer, encryptor, func(ctx context.Context) error {
		refreshed, err := setup.runOnce(ctx)
		if err != nil {
			return err
		}
		return setup.persist(ctx, refreshed)
	}, logger)

	summary := orchestrator.ClaimAll(ctx, orders)

	if setup.store != nil && len(summary.Attempted) > 0 {
		attempts := make([]postgres.ClaimAttempt, 0, len(summary.Attempted))
		now := time.Now().UTC()
		for _, out := range summary.Attempted {
			attempt := postgres.ClaimAttempt{
				User:      setup.user.Hex(),
				Key:       out.Key,
				Succeeded: out.Err == nil,
				At:        now,
			}
			if out.Err != nil {
				attempt.Error = out.Err.Error()
			} else {
				attempt.TxHash = out.TxHash.Hex()
			}
			attempts = append(attempts, attempt)
		}
		if err := setup.store.InsertClaimAttempts(ctx, attempts); err != nil {
			logger.Warn("store claim history failed", zap.Error(err))
		}
	}

	failures := summary.Failures()
	logger.Info("claim batch complete",
		zap.Int("claimed", summary.Succeeded),
		zap.Int("failed", len(failures)),
		zap.Int("skipped", len(orders)-len(summary.Attempted)),
	)
	for _, failure := range failures {
		logger.Warn("order not claimed",
			zap.String("key", failure.Key.String()),
			zap.Error(failure.Err),
		)
	}

	if summary.Succeeded == 0 && len(failures) > 0 {
		return fmt.Errorf("claim batch failed: %d orders, 0 claimed", len(failures))
	}
	return nil
}
