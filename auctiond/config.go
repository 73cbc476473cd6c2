package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/cloudx-io/blindauction/core"
)

// DefaultAuctionAddress is used when AUCTIOND_ADDRESS is not set.
const DefaultAuctionAddress = "0xEA674fdDe714fd979de3EdF0F56AA9716B898ec8"

// Config is the daemon configuration, read from AUCTIOND_* environment
// variables.
type Config struct {
	MaxWorkers int
	Listen     string
	VsockPort  uint32

	Auction common.Address
	Engine  core.Config

	// GenesisHeight is the block height of the fresh ledger
	GenesisHeight uint64

	// BlockInterval mines one block per interval when positive
	BlockInterval time.Duration

	JournalPath    string
	SigningKeyPath string
	LogLevel       slog.Level

	ReadTimeout time.Duration
}

// LoadConfig reads the configuration through getenv.
func LoadConfig(getenv func(string) string) (Config, error) {
	cfg := Config{
		Listen:      "127.0.0.1:5000",
		Auction:     common.HexToAddress(DefaultAuctionAddress),
		Engine:      core.DefaultConfig(),
		LogLevel:    slog.LevelInfo,
		ReadTimeout: 30 * time.Second,
	}

	maxWorkers, err := getRequiredEnvInt(getenv, "AUCTIOND_MAX_WORKERS")
	if err != nil {
		return cfg, fmt.Errorf("failed to get max workers config: %w", err)
	}
	if maxWorkers <= 0 {
		return cfg, fmt.Errorf("AUCTIOND_MAX_WORKERS must be positive, got %d", maxWorkers)
	}
	cfg.MaxWorkers = maxWorkers

	if v := getenv("AUCTIOND_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if err := envUint(getenv, "AUCTIOND_VSOCK_PORT", 32, func(u uint64) { cfg.VsockPort = uint32(u) }); err != nil {
		return cfg, err
	}

	if v := getenv("AUCTIOND_ADDRESS"); v != "" {
		if !common.IsHexAddress(v) {
			return cfg, fmt.Errorf("invalid value for AUCTIOND_ADDRESS: %s (must be a 20-byte hex address)", v)
		}
		cfg.Auction = common.HexToAddress(v)
	}

	for _, opt := range []struct {
		key string
		dst *uint64
	}{
		{"AUCTIOND_COMMIT_WINDOW", &cfg.Engine.CommitWindowBlocks},
		{"AUCTIOND_REVEAL_WINDOW", &cfg.Engine.RevealWindowBlocks},
		{"AUCTIOND_START_BLOCK", &cfg.Engine.StartBlock},
		{"AUCTIOND_CLONE_GAS", &cfg.Engine.CloneMinGas},
		{"AUCTIOND_FINALIZE_GAS", &cfg.Engine.FinalizeMinGas},
		{"AUCTIOND_GENESIS_HEIGHT", &cfg.GenesisHeight},
	} {
		dst := opt.dst
		if err := envUint(getenv, opt.key, 64, func(u uint64) { *dst = u }); err != nil {
			return cfg, err
		}
	}
	if err := cfg.Engine.Validate(); err != nil {
		return cfg, err
	}

	if v := getenv("AUCTIOND_BLOCK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid value for AUCTIOND_BLOCK_INTERVAL: %s (must be a duration)", v)
		}
		cfg.BlockInterval = d
	}

	cfg.JournalPath = getenv("AUCTIOND_JOURNAL")
	cfg.SigningKeyPath = getenv("AUCTIOND_SIGNING_KEY")

	if v := getenv("AUCTIOND_LOG_LEVEL"); v != "" {
		lvl, err := parseLevel(v)
		if err != nil {
			return cfg, err
		}
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

// Helper function for required environment variable parsing
func getRequiredEnvInt(getenv func(string) string, key string) (int, error) {
	value := getenv(key)
	if value == "" {
		return 0, fmt.Errorf("required environment variable %s is not set", key)
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a valid integer)", key, value)
	}
	return intValue, nil
}

func envUint(getenv func(string) string, key string, bits int, set func(uint64)) error {
	value := getenv(key)
	if value == "" {
		return nil
	}
	u, err := strconv.ParseUint(value, 10, bits)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %s (must be a non-negative integer)", key, value)
	}
	set(u)
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid value for AUCTIOND_LOG_LEVEL: %s", s)
	}
}

func setupLogging(lvl slog.Level) {
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
}
