package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func reconcileFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.String("engine", "", "")
	flags.String("engine-version", "v8", "")
	flags.String("pool", "", "")
	flags.String("user", "", "")
	flags.Uint64("from", 0, "")
	flags.Uint64("to", 0, "")
	flags.Uint64("max-window", 50_000, "")
	return flags
}

func TestLoadReconcileDefaults(t *testing.T) {
	cfg, err := LoadReconcile("", reconcileFlags())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.EngineVersion != "v8" {
		t.Fatalf("default version mismatch: %s", cfg.EngineVersion)
	}
	if cfg.MaxWindow != 50_000 || cfg.MaxRetries != 5 {
		t.Fatalf("defaults mismatch: window=%d retries=%d", cfg.MaxWindow, cfg.MaxRetries)
	}
	if cfg.RetryBackoff != 500*time.Millisecond {
		t.Fatalf("retry backoff mismatch: %v", cfg.RetryBackoff)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level mismatch: %s", cfg.LogLevel)
	}
}

func TestLoadReconcileFlagsWin(t *testing.T) {
	flags := reconcileFlags()
	if err := flags.Parse([]string{
		"--rpc", "http://localhost:8545",
		"--engine", "0x1111111111111111111111111111111111111111",
		"--engine-version", "v6",
		"--from", "1000",
	}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadReconcile("", flags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RPCURL != "http://localhost:8545" {
		t.Fatalf("rpc mismatch: %s", cfg.RPCURL)
	}
	if cfg.EngineVersion != "v6" || cfg.FromBlock != 1000 {
		t.Fatalf("flag values lost: %+v", cfg)
	}
}

func TestLoadReconcileEnv(t *testing.T) {
	t.Setenv("VEILSWAP_PG_DSN", "postgres://localhost/veilswap")

	cfg, err := LoadReconcile("", reconcileFlags())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PGDSN != "postgres://localhost/veilswap" {
		t.Fatalf("env value lost: %s", cfg.PGDSN)
	}
}

func TestLoadClaimDefaults(t *testing.T) {
	cfg, err := LoadClaim("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FheTimeout != 30*time.Second {
		t.Fatalf("fhe timeout mismatch: %v", cfg.FheTimeout)
	}
	if cfg.SessionTTL != 24*time.Hour || cfg.DecryptAttempts != 3 {
		t.Fatalf("session defaults mismatch: ttl=%v attempts=%d", cfg.SessionTTL, cfg.DecryptAttempts)
	}
}
