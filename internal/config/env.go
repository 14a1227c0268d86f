package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays KAS_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("KAS_SERVER_NAME"); v != "" {
		cfg.ServerName = v
	}
	if v := os.Getenv("KAS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("KAS_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v, ok := os.LookupEnv("KAS_LISTEN_BROKER"); ok {
		cfg.Listen.Broker = v
	}
	if v, ok := os.LookupEnv("KAS_LISTEN_GRPC"); ok {
		cfg.Listen.GRPC = v
	}
	if v, ok := os.LookupEnv("KAS_LISTEN_HTTP"); ok {
		cfg.Listen.HTTP = v
	}
	envDuration("KAS_SESSION_AUTH_TIMEOUT", &cfg.Session.AuthTimeout)
	envDuration("KAS_SESSION_IDLE_TIMEOUT", &cfg.Session.IdleTimeout)
	envDuration("KAS_SESSION_MAX_GET_WAIT", &cfg.Session.MaxGetWait)
	envDuration("KAS_QUEUES_DEFAULT_POLL", &cfg.Queues.DefaultPoll)
	if v := os.Getenv("KAS_QUEUES_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queues.MaxBodyBytes = n
		}
	}
	if v := os.Getenv("KAS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("KAS_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}
