package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zhaobenny/tokenledger/internal/pricing"
)

// Config holds the CLI configuration
type Config struct {
	HistoryFile string        `yaml:"history_file,omitempty"`
	ArchiveDB   string        `yaml:"archive_db,omitempty"`
	PricingFile string        `yaml:"pricing_file,omitempty"`
	LogFile     string        `yaml:"log_file,omitempty"`
	Debug       bool          `yaml:"debug,omitempty"`
	Pricing     pricing.Table `yaml:"pricing,omitempty"`
	ClientID    string        `yaml:"client_id"`
}

const (
	defaultArchiveDB = ".tokenledger.db"
	fileName         = ".tokenledger.yaml"
)

// Path returns the path to the config file
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fileName), nil
}

// Read parses the config file at path without environment overrides or
// defaults. A missing file yields an empty config. Use it before SaveTo.
func Read(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFrom loads the configuration at path and applies environment overrides
// and defaults. A missing file yields defaults.
func LoadFrom(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := pricing.Merge(pricing.Defaults(), cfg.Pricing).Validate(); err != nil {
		return nil, fmt.Errorf("invalid pricing in %q: %w", path, err)
	}

	return cfg, nil
}

// applyEnvOverrides lets TOKENLEDGER_* variables take precedence over the file
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("TOKENLEDGER_HISTORY_FILE"); val != "" {
		cfg.HistoryFile = val
	}
	if val := os.Getenv("TOKENLEDGER_ARCHIVE_DB"); val != "" {
		cfg.ArchiveDB = val
	}
	if val := os.Getenv("TOKENLEDGER_PRICING_FILE"); val != "" {
		cfg.PricingFile = val
	}
	if val := os.Getenv("TOKENLEDGER_LOG_FILE"); val != "" {
		cfg.LogFile = val
	}
}

func applyDefaults(cfg *Config) {
	if cfg.ArchiveDB == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.ArchiveDB = filepath.Join(home, defaultArchiveDB)
		} else {
			cfg.ArchiveDB = defaultArchiveDB
		}
	}
}

// ResolvePricing returns the pricing overrides: the pricing file first, then
// inline pricing on top. The ledger layers the result over its built-in table.
func (cfg *Config) ResolvePricing() (pricing.Table, error) {
	table := pricing.Table{}
	if cfg.PricingFile != "" {
		fromFile, err := pricing.LoadFile(cfg.PricingFile)
		if err != nil {
			return nil, err
		}
		table = pricing.Merge(table, fromFile)
	}
	table = pricing.Merge(table, cfg.Pricing)

	if err := pricing.Merge(pricing.Defaults(), table).Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// SaveTo writes the configuration to path, generating a client ID if unset
func SaveTo(path string, cfg *Config) error {
	if cfg.ClientID == "" {
		id, err := generateClientID()
		if err != nil {
			return err
		}
		cfg.ClientID = id
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func generateClientID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
