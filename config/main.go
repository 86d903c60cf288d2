package config

import (
	"fmt"
	"os"

	"hlsfrag/models"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func Load() error {
	if err := godotenv.Load(); err != nil {
		zap.S().Debugf("no .env file loaded: %v", err)
	}
	return LoadEnv()
}

// LoadSessionConfig reads the session YAML file.
// a missing file yields an empty configuration.
func LoadSessionConfig(path string) (*models.SessionConfig, error) {
	cfg := &models.SessionConfig{
		Headers: make(map[string]string),
	}
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed reading session config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed decoding session config: %w", err)
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	return cfg, nil
}
