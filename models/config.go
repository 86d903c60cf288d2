package models

import "time"

type EnvConfig struct {
	HTTPSProxy   string
	HTTPProxy    string
	NoProxy      string
	EdgeProxyURL string
	HTTP3        bool

	CacheDriver string
	CacheDSN    string
	CacheSize   int
	CacheMaxAge time.Duration

	Concurrency   int
	Timeout       time.Duration
	RetryAttempts int
	MaxInMemory   int

	SessionConfig string
	LogLevel      string
}

// SessionConfig is the YAML description of a playback session.
type SessionConfig struct {
	Headers     map[string]string `yaml:"headers"`
	CookiesFile string            `yaml:"cookies_file"`
	HTTPProxy   string            `yaml:"http_proxy"`
	HTTPSProxy  string            `yaml:"https_proxy"`
	NoProxy     string            `yaml:"no_proxy"`
}
