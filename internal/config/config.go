// Package config loads and validates the shuffle coordinator's
// configuration: a YAML file tier for static deployment settings (mirroring
// original_source's config::Config::builder().add_source(File) pattern,
// generalized from a two-phase Raw/Config split to direct unmarshaling since
// Go's yaml.v3 needs no such split), overridden by environment variables
// validated the way the teacher's ValidateEnv does.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds fully validated coordinator configuration.
type Config struct {
	// Required
	TokenSecret       string `yaml:"-"`
	ChainRPCAddr      string `yaml:"chain_rpc_addr"`
	ContractAddr      string `yaml:"contract_addr"`
	ChainSubmitterKey string `yaml:"-"`
	ListenAddr        string `yaml:"listen_addr"`

	// Optional, with defaults
	MinRoomSize          int           `yaml:"min_room_size"`
	ShuffleRoundDeadline  time.Duration `yaml:"shuffle_round_deadline"`
	TokenTTL             time.Duration `yaml:"token_ttl"`
	GoEnv                string        `yaml:"-"`
	LogLevel             string        `yaml:"log_level"`

	RedisEnabled  bool   `yaml:"-"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"-"`

	AdminAddr string `yaml:"admin_addr"`

	OTLPCollectorAddr string `yaml:"otlp_collector_addr"`

	// Rate limits (ulule/limiter formatted strings, e.g. "100-M")
	RateLimitJoinIP      string `yaml:"-"`
	RateLimitJoinOwner   string `yaml:"-"`
}

// fileConfig is the shape unmarshaled directly from the YAML config file;
// env vars are layered on top of whatever it sets.
type fileConfig struct {
	ChainRPCAddr         string        `yaml:"chain_rpc_addr"`
	ContractAddr         string        `yaml:"contract_addr"`
	ListenAddr           string        `yaml:"listen_addr"`
	MinRoomSize          int           `yaml:"min_room_size"`
	ShuffleRoundDeadline time.Duration `yaml:"shuffle_round_deadline"`
	TokenTTL             time.Duration `yaml:"token_ttl"`
	LogLevel             string        `yaml:"log_level"`
	RedisAddr            string        `yaml:"redis_addr"`
	AdminAddr            string        `yaml:"admin_addr"`
	OTLPCollectorAddr    string        `yaml:"otlp_collector_addr"`
}

// defaults mirror original_source/src/config/service.rs: address
// 127.0.0.1:8080, min_room_size 3, shuffle_round_deadline 120s.
func defaultFileConfig() fileConfig {
	return fileConfig{
		ListenAddr:           "127.0.0.1:8080",
		MinRoomSize:          3,
		ShuffleRoundDeadline: 120 * time.Second,
		TokenTTL:             24 * time.Hour,
		LogLevel:             "info",
		AdminAddr:            "127.0.0.1:9090",
	}
}

// LoadFile reads the YAML tier from path, falling back to defaults for any
// field the file leaves zero-valued. path may be empty, in which case
// defaults alone are used.
func LoadFile(path string) (fileConfig, error) {
	fc := defaultFileConfig()
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fc, nil
		}
		return fc, fmt.Errorf("config: read %s: %w", path, err)
	}
	overlay := defaultFileConfig()
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fc, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return overlay, nil
}

// ValidateEnv loads the YAML tier (configPath may be "") and layers required
// environment variables on top, validating the same way the teacher's
// ValidateEnv does: collect every violation before returning, rather than
// failing on the first one.
func ValidateEnv(configPath string) (*Config, error) {
	fc, err := LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ChainRPCAddr:         fc.ChainRPCAddr,
		ContractAddr:         fc.ContractAddr,
		ListenAddr:           fc.ListenAddr,
		MinRoomSize:          fc.MinRoomSize,
		ShuffleRoundDeadline: fc.ShuffleRoundDeadline,
		TokenTTL:             fc.TokenTTL,
		LogLevel:             fc.LogLevel,
		RedisAddr:            fc.RedisAddr,
		AdminAddr:            fc.AdminAddr,
		OTLPCollectorAddr:    fc.OTLPCollectorAddr,
	}

	var errs []string

	cfg.TokenSecret = os.Getenv("TOKEN_SECRET")
	if cfg.TokenSecret == "" {
		errs = append(errs, "TOKEN_SECRET is required")
	} else if len(cfg.TokenSecret) < 32 {
		errs = append(errs, fmt.Sprintf("TOKEN_SECRET must be at least 32 characters (got %d)", len(cfg.TokenSecret)))
	}

	if v := os.Getenv("CHAIN_RPC_ADDR"); v != "" {
		cfg.ChainRPCAddr = v
	}
	if cfg.ChainRPCAddr == "" {
		errs = append(errs, "chain_rpc_addr/CHAIN_RPC_ADDR is required")
	} else if !isValidHostPort(cfg.ChainRPCAddr) {
		errs = append(errs, fmt.Sprintf("chain_rpc_addr must be in format 'host:port' (got '%s')", cfg.ChainRPCAddr))
	}

	if v := os.Getenv("CONTRACT_ADDR"); v != "" {
		cfg.ContractAddr = v
	}
	if cfg.ContractAddr == "" {
		errs = append(errs, "contract_addr/CONTRACT_ADDR is required")
	}

	cfg.ChainSubmitterKey = os.Getenv("CHAIN_SUBMITTER_KEY")
	if cfg.ChainSubmitterKey == "" {
		errs = append(errs, "CHAIN_SUBMITTER_KEY is required")
	}

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if !isValidHostPort(cfg.ListenAddr) {
		errs = append(errs, fmt.Sprintf("listen_addr must be in format 'host:port' (got '%s')", cfg.ListenAddr))
	}

	if v := os.Getenv("MIN_ROOM_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("MIN_ROOM_SIZE must be an integer (got '%s')", v))
		} else {
			cfg.MinRoomSize = n
		}
	}
	if cfg.MinRoomSize < 2 {
		errs = append(errs, fmt.Sprintf("min_room_size must be at least 2 (got %d)", cfg.MinRoomSize))
	}

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		if v := os.Getenv("REDIS_ADDR"); v != "" {
			cfg.RedisAddr = v
		}
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
		} else if !isValidHostPort(cfg.RedisAddr) {
			errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.RateLimitJoinIP = getEnvOrDefault("RATE_LIMIT_JOIN_IP", "20-M")
	cfg.RateLimitJoinOwner = getEnvOrDefault("RATE_LIMIT_JOIN_OWNER", "5-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}
	return parts[0] != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}

// Summary returns a log-safe representation of cfg with secrets redacted,
// for the "configuration validated" log line at startup.
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"token_secret":    redactSecret(c.TokenSecret),
		"chain_rpc_addr":  c.ChainRPCAddr,
		"contract_addr":   c.ContractAddr,
		"listen_addr":     c.ListenAddr,
		"min_room_size":   c.MinRoomSize,
		"redis_enabled":   c.RedisEnabled,
		"redis_addr":      c.RedisAddr,
		"go_env":          c.GoEnv,
		"log_level":       c.LogLevel,
	}
}
