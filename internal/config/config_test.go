package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMinimalRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TOKEN_SECRET", strings.Repeat("a", 32))
	t.Setenv("CHAIN_RPC_ADDR", "127.0.0.1:8545")
	t.Setenv("CONTRACT_ADDR", "0x0000000000000000000000000000000000dEaD")
	t.Setenv("CHAIN_SUBMITTER_KEY", strings.Repeat("b", 64))
}

func TestValidateEnvAppliesDefaultsWithNoFile(t *testing.T) {
	setMinimalRequiredEnv(t)

	cfg, err := ValidateEnv("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, 3, cfg.MinRoomSize)
	assert.Equal(t, 120*time.Second, cfg.ShuffleRoundDeadline)
	assert.False(t, cfg.RedisEnabled, "expected Redis disabled by default")
}

func TestValidateEnvMissingTokenSecretCollectsError(t *testing.T) {
	t.Setenv("CHAIN_RPC_ADDR", "127.0.0.1:8545")
	t.Setenv("CONTRACT_ADDR", "0xdead")

	_, err := ValidateEnv("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_SECRET is required")
}

func TestValidateEnvCollectsAllViolationsAtOnce(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "too-short")
	t.Setenv("LISTEN_ADDR", "not-a-host-port")
	// CHAIN_RPC_ADDR, CONTRACT_ADDR, and CHAIN_SUBMITTER_KEY left unset.

	_, err := ValidateEnv("")
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"TOKEN_SECRET must be at least 32 characters",
		"chain_rpc_addr/CHAIN_RPC_ADDR is required",
		"contract_addr/CONTRACT_ADDR is required",
		"CHAIN_SUBMITTER_KEY is required",
		"listen_addr must be in format",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidateEnvMissingChainSubmitterKeyCollectsError(t *testing.T) {
	t.Setenv("TOKEN_SECRET", strings.Repeat("a", 32))
	t.Setenv("CHAIN_RPC_ADDR", "127.0.0.1:8545")
	t.Setenv("CONTRACT_ADDR", "0x0000000000000000000000000000000000dEaD")

	_, err := ValidateEnv("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAIN_SUBMITTER_KEY is required")
}

func TestValidateEnvRedisAddrDefaultedWhenEnabledButUnset(t *testing.T) {
	setMinimalRequiredEnv(t)
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := ValidateEnv("")
	require.NoError(t, err)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestValidateEnvRejectsMalformedRedisAddr(t *testing.T) {
	setMinimalRequiredEnv(t)
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "no-port-here")

	_, err := ValidateEnv("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_ADDR must be in format")
}

func TestValidateEnvOverridesFileMinRoomSize(t *testing.T) {
	setMinimalRequiredEnv(t)
	t.Setenv("MIN_ROOM_SIZE", "5")

	cfg, err := ValidateEnv("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MinRoomSize)
}

func TestValidateEnvRejectsMinRoomSizeBelowTwo(t *testing.T) {
	setMinimalRequiredEnv(t)
	t.Setenv("MIN_ROOM_SIZE", "1")

	_, err := ValidateEnv("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_room_size must be at least 2")
}

func TestSummaryRedactsTokenSecret(t *testing.T) {
	setMinimalRequiredEnv(t)
	cfg, err := ValidateEnv("")
	require.NoError(t, err)

	summary := cfg.Summary()
	secret, ok := summary["token_secret"].(string)
	require.True(t, ok, "expected token_secret in summary")
	assert.NotContains(t, secret, strings.Repeat("a", 32))
}

func TestLoadFileMissingPathReturnsDefaults(t *testing.T) {
	fc, err := LoadFile("/nonexistent/path/does-not-exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", fc.ListenAddr)
}
