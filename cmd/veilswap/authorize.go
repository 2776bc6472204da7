package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"veilswap/internal/chain"
	"veilswap/internal/config"
	"veilswap/internal/fhe"
)

func runAuthorize(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAuthorize(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.FheURL == "" {
		return fmt.Errorf("fhe url is required")
	}
	if !common.IsHexAddress(cfg.User) {
		return fmt.Errorf("invalid user address: %s", cfg.User)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	manager := fhe.NewManager(fhe.ManagerConfig{
		ChainID:    chainID.Uint64(),
		SessionTTL: cfg.SessionTTL,
	}, fhe.NewClient(cfg.FheURL, cfg.FheTimeout, logger), logger)

	transitions := manager.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for change := range transitions {
			logger.Info("session status",
				zap.String("identity", change.Identity),
				zap.String("status", change.Status.String()),
				zap.Error(change.Err),
			)
			if change.Status == fhe.StatusReady || change.Status == fhe.StatusError {
				return
			}
		}
	}()

	identity := common.HexToAddress(cfg.User).Hex()
	session, err := manager.Authorize(ctx, identity)
	<-done
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}

	logger.Info("privacy session established",
		zap.String("identity", identity),
		zap.String("issuer", session.Permit.Issuer),
		zap.Time("expires_at", session.ExpiresAt),
	)
	return nil
}
