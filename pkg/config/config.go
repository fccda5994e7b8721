package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const ConfigFileName = ".nftmarket.json"

const (
	OwnerScopeLocal  = "local"
	OwnerScopeWallet = "wallet"
)

const (
	ConnectorKindEIP1193 = "eip1193"
	ConnectorKindRelay   = "relay"
)

// ChainConfig holds configuration for a supported EVM chain.
type ChainConfig struct {
	Name        string   `json:"name"`
	ChainID     int64    `json:"chain_id,omitempty"`
	Symbol      string   `json:"symbol,omitempty"`
	RPCURLs     []string `json:"rpc_urls"`
	ExplorerURL string   `json:"explorer_url,omitempty"`
}

// ConnectorConfig describes one wallet connector.
type ConnectorConfig struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Endpoint       string `json:"endpoint"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// StorageConfig selects where the local identity is persisted.
type StorageConfig struct {
	SQLitePath string `json:"sqlite_path,omitempty"`
	RedisAddr  string `json:"redis_addr,omitempty"`
}

// KafkaConfig configures the mutation event sink. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string `json:"brokers,omitempty"`
	Topic   string   `json:"topic,omitempty"`
}

// Config holds application-wide settings.
type Config struct {
	Chains                  []ChainConfig     `json:"chains"`
	Connectors              []ConnectorConfig `json:"connectors"`
	WalletConnectProjectID  string            `json:"walletconnect_project_id,omitempty"`
	OwnerScope              string            `json:"owner_scope"`
	Storage                 StorageConfig     `json:"storage"`
	Kafka                   KafkaConfig       `json:"kafka"`
	OtelEndpoint            string            `json:"otel_endpoint,omitempty"`
	LogLevel                string            `json:"log_level"`
	LogFile                 string            `json:"log_file,omitempty"`
	RefreshIntervalSeconds  int               `json:"refresh_interval_seconds"`
	HandshakeTimeoutSeconds int               `json:"handshake_timeout_seconds"`
	BackendURL              string            `json:"backend_url,omitempty"`
	HTTPAddr                string            `json:"http_addr"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Connectors:              DefaultConnectors(),
		OwnerScope:              OwnerScopeLocal,
		Kafka:                   KafkaConfig{Topic: "nftmarket-mutations"},
		LogLevel:                "info",
		RefreshIntervalSeconds:  30,
		HandshakeTimeoutSeconds: 60,
		HTTPAddr:                ":8080",
	}
}

// DefaultConnectors mirrors the connectors offered by the web front-end.
func DefaultConnectors() []ConnectorConfig {
	return []ConnectorConfig{
		{ID: "injected", Name: "Injected", Kind: ConnectorKindEIP1193, Endpoint: "http://127.0.0.1:1248"},
		{ID: "walletConnect", Name: "WalletConnect", Kind: ConnectorKindRelay, Endpoint: "wss://relay.walletconnect.com"},
		{ID: "coinbaseWalletSDK", Name: "Coinbase Wallet", Kind: ConnectorKindEIP1193, Endpoint: "http://127.0.0.1:1249"},
	}
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// DataDir returns the directory next to the config file used for local state.
func DataDir(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), ".nftmarket")
}

func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

func LoadConfig(r io.Reader) (Config, error) {
	var raw struct {
		Chains                  []ChainConfig     `json:"chains"`
		Connectors              []ConnectorConfig `json:"connectors"`
		WalletConnectProjectID  string            `json:"walletconnect_project_id"`
		OwnerScope              string            `json:"owner_scope"`
		Storage                 StorageConfig     `json:"storage"`
		Kafka                   KafkaConfig       `json:"kafka"`
		OtelEndpoint            string            `json:"otel_endpoint"`
		LogLevel                string            `json:"log_level"`
		LogFile                 string            `json:"log_file"`
		RefreshIntervalSeconds  *int              `json:"refresh_interval_seconds"`
		HandshakeTimeoutSeconds *int              `json:"handshake_timeout_seconds"`
		BackendURL              string            `json:"backend_url"`
		HTTPAddr                string            `json:"http_addr"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, err
	}

	cfg := Default()
	cfg.Chains = raw.Chains
	if len(raw.Connectors) > 0 {
		cfg.Connectors = raw.Connectors
	}
	for i := range cfg.Connectors {
		if cfg.Connectors[i].Kind == "" {
			cfg.Connectors[i].Kind = ConnectorKindEIP1193
		}
		if cfg.Connectors[i].Name == "" {
			cfg.Connectors[i].Name = cfg.Connectors[i].ID
		}
	}
	cfg.WalletConnectProjectID = raw.WalletConnectProjectID
	if raw.OwnerScope != "" {
		cfg.OwnerScope = strings.ToLower(strings.TrimSpace(raw.OwnerScope))
	}
	cfg.Storage = raw.Storage
	if len(raw.Kafka.Brokers) > 0 {
		cfg.Kafka.Brokers = raw.Kafka.Brokers
	}
	if raw.Kafka.Topic != "" {
		cfg.Kafka.Topic = raw.Kafka.Topic
	}
	cfg.OtelEndpoint = raw.OtelEndpoint
	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}
	cfg.LogFile = raw.LogFile
	if raw.RefreshIntervalSeconds != nil {
		cfg.RefreshIntervalSeconds = *raw.RefreshIntervalSeconds
	}
	if raw.HandshakeTimeoutSeconds != nil {
		cfg.HandshakeTimeoutSeconds = *raw.HandshakeTimeoutSeconds
	}
	cfg.BackendURL = raw.BackendURL
	if raw.HTTPAddr != "" {
		cfg.HTTPAddr = raw.HTTPAddr
	}
	return cfg, nil
}

// Validate checks the structure of a configuration before it is saved or used.
func Validate(cfg Config) error {
	seen := make(map[int64]string)
	for i, c := range cfg.Chains {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("validation failed: chain at index %d has no name", i)
		}
		if len(c.RPCURLs) == 0 {
			return fmt.Errorf("validation failed: chain %s has no RPC URLs", c.Name)
		}
		if c.ChainID != 0 {
			if prev, ok := seen[c.ChainID]; ok {
				return fmt.Errorf("validation failed: chain id %d used by both %s and %s", c.ChainID, prev, c.Name)
			}
			seen[c.ChainID] = c.Name
		}
	}
	ids := make(map[string]bool)
	for i, c := range cfg.Connectors {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("validation failed: connector at index %d has no id", i)
		}
		if ids[c.ID] {
			return fmt.Errorf("validation failed: duplicate connector id %s", c.ID)
		}
		ids[c.ID] = true
		if c.Kind != ConnectorKindEIP1193 && c.Kind != ConnectorKindRelay {
			return fmt.Errorf("validation failed: connector %s has unknown kind %q", c.ID, c.Kind)
		}
	}
	if cfg.OwnerScope != OwnerScopeLocal && cfg.OwnerScope != OwnerScopeWallet {
		return fmt.Errorf("validation failed: owner_scope must be %q or %q", OwnerScopeLocal, OwnerScopeWallet)
	}
	return nil
}

// HandshakeTimeout returns the negotiated window for a connector.
func (c Config) HandshakeTimeout(conn ConnectorConfig) time.Duration {
	if conn.TimeoutSeconds > 0 {
		return time.Duration(conn.TimeoutSeconds) * time.Second
	}
	if c.HandshakeTimeoutSeconds > 0 {
		return time.Duration(c.HandshakeTimeoutSeconds) * time.Second
	}
	return 60 * time.Second
}

func SaveConfig(cfg Config, path string) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return fmt.Errorf("validation failed: encoded configuration is empty")
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0644); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}
