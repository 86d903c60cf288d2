package models

import (
	"net/http"
	"time"
)

type DownloadConfig struct {
	Concurrency   int               // maximum number of concurrent fetches
	Timeout       time.Duration     // timeout for individual HTTP requests
	RetryAttempts int               // number of retry attempts per fetch
	RetryDelay    time.Duration     // delay between retries
	ProgressChunk int               // bytes read between progress events
	MaxInMemory   int               // maximum payload size kept in memory
	CacheSize     int               // entries kept by the in-memory cache, 0 disables it
	Headers       map[string]string // headers sent with every request
	Cookies       []*http.Cookie    // cookies to send with every request
}

func DefaultDownloadConfig() *DownloadConfig {
	return &DownloadConfig{
		Concurrency:   4,
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    2 * time.Second,
		ProgressChunk: 32 * 1024,        // 32KB
		MaxInMemory:   50 * 1024 * 1024, // 50MB
		CacheSize:     64,
		Headers:       make(map[string]string),
		Cookies:       make([]*http.Cookie, 0),
	}
}

// GetDownloadConfig returns a new DownloadConfig with default values merged with the provided config.
// if the provided config is nil, it returns a new config with default values.
func GetDownloadConfig(config *DownloadConfig) *DownloadConfig {
	if config == nil {
		return DefaultDownloadConfig()
	}
	config.Ensure()
	return config
}

func (cfg *DownloadConfig) Ensure() {
	defaultConfig := DefaultDownloadConfig()

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConfig.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultConfig.Timeout
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultConfig.RetryDelay
	}
	if cfg.ProgressChunk <= 0 {
		cfg.ProgressChunk = defaultConfig.ProgressChunk
	}
	if cfg.MaxInMemory <= 0 {
		cfg.MaxInMemory = defaultConfig.MaxInMemory
	}
	if cfg.CacheSize < 0 {
		cfg.CacheSize = 0
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	if cfg.Cookies == nil {
		cfg.Cookies = make([]*http.Cookie, 0)
	}
}
