package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvOverrides are the settings that may come from the environment. Secrets
// such as the WalletConnect project id usually live here rather than in the
// JSON file.
type EnvOverrides struct {
	WalletConnectProjectID string   `env:"NFTMARKET_WALLETCONNECT_PROJECT_ID"`
	OwnerScope             string   `env:"NFTMARKET_OWNER_SCOPE"`
	SQLitePath             string   `env:"NFTMARKET_SQLITE_PATH"`
	RedisAddr              string   `env:"NFTMARKET_REDIS_ADDR"`
	KafkaBrokers           []string `env:"NFTMARKET_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic             string   `env:"NFTMARKET_KAFKA_TOPIC"`
	OtelEndpoint           string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel               string   `env:"NFTMARKET_LOG_LEVEL"`
	BackendURL             string   `env:"NFTMARKET_BACKEND_URL"`
	HTTPAddr               string   `env:"NFTMARKET_HTTP_ADDR"`
}

// LoadDotEnv loads a .env file from the working directory when present.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// ApplyEnv parses the environment and overlays any set values onto cfg.
func ApplyEnv(cfg *Config) error {
	var o EnvOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	applyOverrides(cfg, o)
	return nil
}

func applyOverrides(cfg *Config, o EnvOverrides) {
	if o.WalletConnectProjectID != "" {
		cfg.WalletConnectProjectID = o.WalletConnectProjectID
	}
	if o.OwnerScope != "" {
		cfg.OwnerScope = strings.ToLower(strings.TrimSpace(o.OwnerScope))
	}
	if o.SQLitePath != "" {
		cfg.Storage.SQLitePath = o.SQLitePath
	}
	if o.RedisAddr != "" {
		cfg.Storage.RedisAddr = o.RedisAddr
	}
	if len(o.KafkaBrokers) > 0 {
		cfg.Kafka.Brokers = o.KafkaBrokers
	}
	if o.KafkaTopic != "" {
		cfg.Kafka.Topic = o.KafkaTopic
	}
	if o.OtelEndpoint != "" {
		cfg.OtelEndpoint = o.OtelEndpoint
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.BackendURL != "" {
		cfg.BackendURL = o.BackendURL
	}
	if o.HTTPAddr != "" {
		cfg.HTTPAddr = o.HTTPAddr
	}
}
