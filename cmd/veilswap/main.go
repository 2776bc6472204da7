package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "veilswap",
		Short:        "Order reconciliation and claim tooling for the veilswap settlement engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay ledger events into the set of claimable orders",
		RunE:  runReconcile,
	}
	addReconcileFlags(reconcileCmd)
	root.AddCommand(reconcileCmd)

	claimCmd := &cobra.Command{
		Use:   "claim",
		Short: "Reconcile and claim every claimable order",
		RunE:  runClaim,
	}
	addReconcileFlags(claimCmd)
	claimCmd.Flags().String("private-key", "", "hex-encoded signing key (prefer VEILSWAP_PRIVATE_KEY)")
	claimCmd.Flags().String("fhe-url", "", "encryption service base URL")
	claimCmd.Flags().Duration("fhe-timeout", 30*time.Second, "encryption service request timeout")
	claimCmd.Flags().Duration("session-ttl", 24*time.Hour, "privacy session lifetime")
	claimCmd.Flags().Int("decrypt-attempts", 3, "bounded decrypt retries")
	root.AddCommand(claimCmd)

	authorizeCmd := &cobra.Command{
		Use:   "authorize",
		Short: "Warm a privacy session for an identity",
		RunE:  runAuthorize,
	}
	authorizeCmd.Flags().String("rpc", "", "chain RPC URL")
	authorizeCmd.Flags().String("user", "", "identity address")
	authorizeCmd.Flags().String("fhe-url", "", "encryption service base URL")
	authorizeCmd.Flags().Duration("fhe-timeout", 30*time.Second, "encryption service request timeout")
	authorizeCmd.Flags().Duration("session-ttl", 24*time.Hour, "privacy session lifetime")
	authorizeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(authorizeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addReconcileFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "chain RPC URL")
	cmd.Flags().String("engine", "", "settlement engine contract address")
	cmd.Flags().String("engine-version", "v8", "engine event schema (v6 or v8)")
	cmd.Flags().String("pool", "", "pool id (bytes32 hex)")
	cmd.Flags().String("user", "", "identity address")
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().Uint64("max-window", 50_000, "maximum scanned block window")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts per log query")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("out", "", "optional JSONL snapshot path")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN for snapshots and claim history")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
