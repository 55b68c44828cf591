// Package config parses the forester CLI's configuration from environment
// variables and flag-style arguments, the same getEnv-plus-flag-switch idiom
// the prover's own config loader uses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every knob the forester run command accepts.
type Config struct {
	RPCEndpoint     string
	ProverEndpoint  string
	PollingInterval time.Duration
	MaxWaitTime     time.Duration
}

// defaults mirror the teacher's env-var-first, flag-override pattern.
const (
	defaultPollingInterval = 500 * time.Millisecond
	defaultMaxWaitTime     = 30 * time.Second
)

// NewConfig parses args (typically os.Args[1:]) against environment
// defaults; unrecognized flags are ignored so callers can pass a
// subcommand name ahead of the flags.
func NewConfig(args ...string) (*Config, error) {
	cfg := &Config{
		RPCEndpoint:     getEnv("FORESTER_RPC", ""),
		ProverEndpoint:  getEnv("FORESTER_PROVER", ""),
		PollingInterval: defaultPollingInterval,
		MaxWaitTime:     defaultMaxWaitTime,
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--rpc":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("config: missing value for %s", args[i])
			}
			cfg.RPCEndpoint = args[i+1]
			i++
		case "--prover":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("config: missing value for %s", args[i])
			}
			cfg.ProverEndpoint = args[i+1]
			i++
		case "--polling-interval":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("config: missing value for %s", args[i])
			}
			ms, err := strconv.ParseUint(args[i+1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("config: parsing --polling-interval: %w", err)
			}
			cfg.PollingInterval = time.Duration(ms) * time.Millisecond
			i++
		case "--max-wait-time":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("config: missing value for %s", args[i])
			}
			ms, err := strconv.ParseUint(args[i+1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("config: parsing --max-wait-time: %w", err)
			}
			cfg.MaxWaitTime = time.Duration(ms) * time.Millisecond
			i++
		}
	}

	return cfg, cfg.Validate()
}

// Validate enforces the CLI contract's required flags.
func (c *Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("config: --rpc (or FORESTER_RPC) is required")
	}
	if c.ProverEndpoint == "" {
		return fmt.Errorf("config: --prover (or FORESTER_PROVER) is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
