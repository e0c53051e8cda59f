package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"codeberg.org/wavelink/server/internal/realtime"
)

// loads configuration from environment variables
func LoadEnvironmentVariables() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // not an error - production environments may not have .env file
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	rt, err := loadRealtimeOptions()
	if err != nil {
		return nil, err
	}

	return &Config{
		Environment: environment,
		Port:        port,
		JWTSecret:   jwtSecret,
		Realtime:    rt,
	}, nil
}

// reads realtime overrides on top of the defaults
func loadRealtimeOptions() (realtime.Config, error) {
	cfg := realtime.DefaultConfig()

	var err error

	if cfg.Enabled, err = envBool("REALTIME_ENABLED", cfg.Enabled); err != nil {
		return cfg, err
	}
	if cfg.MaxConnections, err = envInt("REALTIME_MAX_CONNECTIONS", cfg.MaxConnections); err != nil {
		return cfg, err
	}
	if cfg.MaxChannelsPerConnection, err = envInt("REALTIME_MAX_CHANNELS_PER_CONNECTION", cfg.MaxChannelsPerConnection); err != nil {
		return cfg, err
	}
	if cfg.MaxMessageBytes, err = envInt("REALTIME_MAX_MESSAGE_BYTES", cfg.MaxMessageBytes); err != nil {
		return cfg, err
	}
	if cfg.HeartbeatIntervalSecs, err = envInt("REALTIME_HEARTBEAT_INTERVAL_SECS", cfg.HeartbeatIntervalSecs); err != nil {
		return cfg, err
	}
	if cfg.IdleTimeoutSecs, err = envInt("REALTIME_IDLE_TIMEOUT_SECS", cfg.IdleTimeoutSecs); err != nil {
		return cfg, err
	}
	if cfg.OutboundQueueSize, err = envInt("REALTIME_OUTBOUND_QUEUE_SIZE", cfg.OutboundQueueSize); err != nil {
		return cfg, err
	}
	if cfg.EmitRatePerSec, err = envInt("REALTIME_EMIT_RATE_PER_SEC", cfg.EmitRatePerSec); err != nil {
		return cfg, err
	}
	if cfg.JoinRatePerSec, err = envInt("REALTIME_JOIN_RATE_PER_SEC", cfg.JoinRatePerSec); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	return value, nil
}

func envBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}

	return value, nil
}
