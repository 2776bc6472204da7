package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ReconcileConfig holds settings for the reconcile subcommand.
type ReconcileConfig struct {
	RPCURL        string
	EngineAddress string
	EngineVersion string
	Pool          string
	User          string
	FromBlock     uint64
	ToBlock       uint64
	MaxWindow     uint64
	MaxRetries    int
	RetryBackoff  time.Duration
	Out           string
	PGDSN         string
	LogLevel      string
}

// ClaimConfig holds settings for the claim subcommand.
type ClaimConfig struct {
	ReconcileConfig
	PrivateKey      string
	FheURL          string
	FheTimeout      time.Duration
	SessionTTL      time.Duration
	DecryptAttempts int
}

// AuthorizeConfig holds settings for the authorize subcommand.
type AuthorizeConfig struct {
	RPCURL     string
	User       string
	FheURL     string
	FheTimeout time.Duration
	SessionTTL time.Duration
	LogLevel   string
}

// LoadReconcile merges config file, environment variables, and flags.
func LoadReconcile(cfgFile string, flags *pflag.FlagSet) (ReconcileConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ReconcileConfig{}, err
	}
	return reconcileFromViper(v), nil
}

// LoadClaim merges config file, environment variables, and flags.
func LoadClaim(cfgFile string, flags *pflag.FlagSet) (ClaimConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ClaimConfig{}, err
	}
	return ClaimConfig{
		ReconcileConfig: reconcileFromViper(v),
		PrivateKey:      v.GetString("private-key"),
		FheURL:          v.GetString("fhe-url"),
		FheTimeout:      v.GetDuration("fhe-timeout"),
		SessionTTL:      v.GetDuration("session-ttl"),
		DecryptAttempts: v.GetInt("decrypt-attempts"),
	}, nil
}

// LoadAuthorize merges config file, environment variables, and flags.
func LoadAuthorize(cfgFile string, flags *pflag.FlagSet) (AuthorizeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return AuthorizeConfig{}, err
	}
	return AuthorizeConfig{
		RPCURL:     v.GetString("rpc"),
		User:       v.GetString("user"),
		FheURL:     v.GetString("fhe-url"),
		FheTimeout: v.GetDuration("fhe-timeout"),
		SessionTTL: v.GetDuration("session-ttl"),
		LogLevel:   v.GetString("log-level"),
	}, nil
}

func reconcileFromViper(v *viper.Viper) ReconcileConfig {
	return ReconcileConfig{
		RPCURL:        v.GetString("rpc"),
		EngineAddress: v.GetString("engine"),
		EngineVersion: v.GetString("engine-version"),
		Pool:          v.GetString("pool"),
		User:          v.GetString("user"),
		FromBlock:     v.GetUint64("from"),
		ToBlock:       v.GetUint64("to"),
		MaxWindow:     v.GetUint64("max-window"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		Out:           v.GetString("out"),
		PGDSN:         v.GetString("pg-dsn"),
		LogLevel:      v.GetString("log-level"),
	}
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("VEILSWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("engine-version", "v8")
	v.SetDefault("max-window", uint64(50_000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("fhe-timeout", 30*time.Second)
	v.SetDefault("session-ttl", 24*time.Hour)
	v.SetDefault("decrypt-attempts", 3)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}
