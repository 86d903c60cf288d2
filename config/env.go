package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"hlsfrag/models"

	"go.uber.org/zap"
)

var Env = GetDefaultConfig()

func LoadEnv() error {
	if value := os.Getenv("HTTP_PROXY"); value != "" {
		Env.HTTPProxy = value
	}
	if value := os.Getenv("HTTPS_PROXY"); value != "" {
		Env.HTTPSProxy = value
	}
	if value := os.Getenv("NO_PROXY"); value != "" {
		Env.NoProxy = value
	}
	if value := os.Getenv("EDGE_PROXY_URL"); value != "" {
		Env.EdgeProxyURL = value
	}
	if value := os.Getenv("HTTP3"); value != "" {
		http3, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("HTTP3 env is not a valid boolean: %w", err)
		}
		Env.HTTP3 = http3
	}
	if value := os.Getenv("CACHE_DRIVER"); value != "" {
		switch value {
		case "memory", "sqlite", "mysql":
			Env.CacheDriver = value
		default:
			return fmt.Errorf("CACHE_DRIVER env must be one of memory, sqlite, mysql: got %q", value)
		}
	}
	if value := os.Getenv("CACHE_DSN"); value != "" {
		Env.CacheDSN = value
	} else if Env.CacheDriver == "mysql" {
		return fmt.Errorf("CACHE_DSN env is not set")
	}
	if value := os.Getenv("CACHE_SIZE"); value != "" {
		size, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("CACHE_SIZE env is not a valid integer: %w", err)
		}
		Env.CacheSize = size
	}
	if value := os.Getenv("CACHE_MAX_AGE"); value != "" {
		maxAge, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("CACHE_MAX_AGE env is not a valid duration: %w", err)
		}
		Env.CacheMaxAge = maxAge
	}
	if value := os.Getenv("CONCURRENCY"); value != "" {
		concurrency, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("CONCURRENCY env is not a valid integer: %w", err)
		}
		Env.Concurrency = concurrency
	} else {
		zap.S().Debugf("CONCURRENCY is not set, using default %d", Env.Concurrency)
	}
	if value := os.Getenv("TIMEOUT"); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("TIMEOUT env is not a valid duration: %w", err)
		}
		Env.Timeout = timeout
	}
	if value := os.Getenv("RETRY_ATTEMPTS"); value != "" {
		attempts, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("RETRY_ATTEMPTS env is not a valid integer: %w", err)
		}
		Env.RetryAttempts = attempts
	}
	if value := os.Getenv("MAX_IN_MEMORY"); value != "" {
		size, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("MAX_IN_MEMORY env is not a valid integer: %w", err)
		}
		Env.MaxInMemory = size
	}
	if value := os.Getenv("SESSION_CONFIG"); value != "" {
		Env.SessionConfig = value
	}
	if value := os.Getenv("LOG_LEVEL"); value != "" {
		Env.LogLevel = value
	}
	return nil
}

func GetDefaultConfig() *models.EnvConfig {
	return &models.EnvConfig{
		CacheDriver:   "memory",
		CacheSize:     64,
		CacheMaxAge:   24 * time.Hour,
		Concurrency:   4,
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		MaxInMemory:   50 * 1024 * 1024,
		SessionConfig: "session.yaml",
		LogLevel:      "info",
	}
}

// DownloadConfig builds the transport configuration from the environment.
func DownloadConfig() *models.DownloadConfig {
	cfg := models.DefaultDownloadConfig()
	cfg.Concurrency = Env.Concurrency
	cfg.Timeout = Env.Timeout
	cfg.RetryAttempts = Env.RetryAttempts
	cfg.MaxInMemory = Env.MaxInMemory
	cfg.CacheSize = Env.CacheSize
	if Env.CacheDriver != "memory" {
		// the persistent store replaces the in-memory cache
		cfg.CacheSize = 0
	}
	cfg.Ensure()
	return cfg
}
