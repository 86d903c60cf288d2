package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func resetEnv(t *testing.T) {
	t.Helper()
	Env = GetDefaultConfig()
	t.Cleanup(func() { Env = GetDefaultConfig() })
}

func TestLoadEnvDefaults(t *testing.T) {
	resetEnv(t)
	if err := LoadEnv(); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if Env.CacheDriver != "memory" {
		t.Errorf("expected memory cache driver, got %s", Env.CacheDriver)
	}
	if Env.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", Env.Timeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	resetEnv(t)
	t.Setenv("HTTP3", "true")
	t.Setenv("CACHE_DRIVER", "sqlite")
	t.Setenv("CACHE_DSN", "file::memory:")
	t.Setenv("CONCURRENCY", "8")
	t.Setenv("TIMEOUT", "5s")
	t.Setenv("RETRY_ATTEMPTS", "1")
	t.Setenv("EDGE_PROXY_URL", "https://edge.example.com/fetch")
	t.Setenv("LOG_LEVEL", "debug")

	if err := LoadEnv(); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if !Env.HTTP3 {
		t.Error("expected HTTP3 to be enabled")
	}
	if Env.CacheDriver != "sqlite" || Env.CacheDSN != "file::memory:" {
		t.Errorf("unexpected cache settings: %s %s", Env.CacheDriver, Env.CacheDSN)
	}
	if Env.Concurrency != 8 || Env.Timeout != 5*time.Second || Env.RetryAttempts != 1 {
		t.Errorf("unexpected download settings: %+v", Env)
	}
	if Env.EdgeProxyURL != "https://edge.example.com/fetch" {
		t.Errorf("unexpected edge proxy: %s", Env.EdgeProxyURL)
	}

	cfg := DownloadConfig()
	if cfg.CacheSize != 0 {
		t.Errorf("expected in-memory cache to be disabled with a persistent driver, got %d", cfg.CacheSize)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.Concurrency)
	}
}

func TestLoadEnvInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bool", "HTTP3", "maybe"},
		{"driver", "CACHE_DRIVER", "redis"},
		{"int", "CONCURRENCY", "many"},
		{"duration", "TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetEnv(t)
			t.Setenv(tt.key, tt.value)
			if err := LoadEnv(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadEnvMySQLRequiresDSN(t *testing.T) {
	resetEnv(t)
	t.Setenv("CACHE_DRIVER", "mysql")
	t.Setenv("CACHE_DSN", "")
	if err := LoadEnv(); err == nil {
		t.Error("expected error when mysql driver has no DSN")
	}
}

func TestLoadSessionConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.yaml")
	content := `headers:
  Referer: https://player.example.com/
  User-Agent: hlsfrag-test
cookies_file: cookies.txt
http_proxy: http://proxy.local:3128
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadSessionConfig(path)
	if err != nil {
		t.Fatalf("LoadSessionConfig: %v", err)
	}
	if cfg.Headers["Referer"] != "https://player.example.com/" {
		t.Errorf("unexpected Referer header: %q", cfg.Headers["Referer"])
	}
	if cfg.CookiesFile != "cookies.txt" {
		t.Errorf("unexpected cookies file: %q", cfg.CookiesFile)
	}
	if cfg.HTTPProxy != "http://proxy.local:3128" {
		t.Errorf("unexpected proxy: %q", cfg.HTTPProxy)
	}
}

func TestLoadSessionConfigMissing(t *testing.T) {
	cfg, err := LoadSessionConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadSessionConfig: %v", err)
	}
	if cfg.Headers == nil || len(cfg.Headers) != 0 {
		t.Errorf("expected empty headers, got %v", cfg.Headers)
	}
}

func TestLoadSessionConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte("headers: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSessionConfig(path); err == nil {
		t.Error("expected decode error")
	}
}
