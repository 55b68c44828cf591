package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfigAppliesFlagOverrides(t *testing.T) {
	cfg, err := NewConfig("--rpc", "http://rpc.local", "--prover", "http://prover.local", "--polling-interval", "250", "--max-wait-time", "5000")
	require.NoError(t, err)
	require.Equal(t, "http://rpc.local", cfg.RPCEndpoint)
	require.Equal(t, "http://prover.local", cfg.ProverEndpoint)
	require.Equal(t, 250*time.Millisecond, cfg.PollingInterval)
	require.Equal(t, 5*time.Second, cfg.MaxWaitTime)
}

func TestNewConfigRequiresRPCAndProver(t *testing.T) {
	_, err := NewConfig()
	require.Error(t, err)

	_, err = NewConfig("--rpc", "http://rpc.local")
	require.Error(t, err)
}

func TestNewConfigDefaultsTimings(t *testing.T) {
	cfg, err := NewConfig("--rpc", "http://rpc.local", "--prover", "http://prover.local")
	require.NoError(t, err)
	require.Equal(t, defaultPollingInterval, cfg.PollingInterval)
	require.Equal(t, defaultMaxWaitTime, cfg.MaxWaitTime)
}
