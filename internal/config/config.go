// Package config loads and saves the process configuration for the
// wallet core: network selection, storage location, address-gap
// defaults, and logging. walletctl reads Network and Storage from it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// NetworkType selects which chain parameters an Account's keys derive
// under.
type NetworkType string

const (
	NetworkMainnet NetworkType = "mainnet"
	NetworkTestnet NetworkType = "testnet"
)

// Config holds all configuration for a walletcore process.
type Config struct {
	// Network selects mainnet or testnet key/address parameters.
	Network NetworkType `yaml:"network"`

	// Storage holds the sqlite data directory.
	Storage StorageConfig `yaml:"storage"`

	// AddressGap holds receiving/change gap tunables. Account
	// generation does not read it; addrmgr applies its own defaults.
	AddressGap AddressGapConfig `yaml:"address_gap"`

	// Logging holds the structured logger's settings.
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig holds the sqlite data directory.
type StorageConfig struct {
	// DataDir is the directory walletdb.Open reads/writes the sqlite
	// file from.
	DataDir string `yaml:"data_dir"`
}

// ChainGapConfig mirrors addrmgr.ChainConfig as a YAML-serializable
// value.
type ChainGapConfig struct {
	Gap                   int `yaml:"gap"`
	MaximumUsesPerAddress int `yaml:"maximum_uses_per_address"`
}

// AddressGapConfig holds the default receiving/change chain tunables.
type AddressGapConfig struct {
	Receiving ChainGapConfig `yaml:"receiving"`
	Change    ChainGapConfig `yaml:"change"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// File is the log file path (empty for stdout).
	File string `yaml:"file"`
}

// DefaultConfig returns a Config with sensible defaults - the same
// gap/maximum-uses-per-address defaults addrmgr.FromDescriptor falls
// back to when a wallet's address_generator omits them.
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkMainnet,
		Storage: StorageConfig{
			DataDir: "~/.walletcore",
		},
		AddressGap: AddressGapConfig{
			Receiving: ChainGapConfig{Gap: 20, MaximumUsesPerAddress: 2},
			Change:    ChainGapConfig{Gap: 6, MaximumUsesPerAddress: 2},
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// FileName is the default config file name.
const FileName = "config.yaml"

// Load reads configuration from dataDir/config.yaml, creating one with
// default values on first run.
func Load(dataDir string) (*Config, error) {
	expandedDir := expandPath(dataDir)
	configPath := filepath.Join(expandedDir, FileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Storage.DataDir = dataDir
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# walletcore configuration\n# generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Path returns the full path to the config file for the given data
// directory.
func Path(dataDir string) string {
	return filepath.Join(expandPath(dataDir), FileName)
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
