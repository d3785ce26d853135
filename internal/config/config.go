// Package config loads TOML configuration for the scenectl client and
// the scened daemon.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ClientConfig configures a connection to a running engine.
type ClientConfig struct {
	EngineAddr     string   `toml:"engine_addr"`
	ConnectTimeout duration `toml:"connect_timeout"`
	RequestTimeout duration `toml:"request_timeout"`
	LogLevel       string   `toml:"log_level"`
}

// DaemonConfig configures the scened engine daemon.
type DaemonConfig struct {
	ListenAddr  string `toml:"listen_addr"`
	MetricsAddr string `toml:"metrics_addr"`
	WorldFile   string `toml:"world_file"`
	LogLevel    string `toml:"log_level"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		EngineAddr:     "127.0.0.1:9100",
		ConnectTimeout: duration{5 * time.Second},
		RequestTimeout: duration{30 * time.Second},
	}
}

func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		ListenAddr: ":9100",
	}
}

// LoadClientConfig reads a TOML file over the defaults.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// LoadDaemonConfig reads a TOML file over the defaults.
func LoadDaemonConfig(path string) (DaemonConfig, error) {
	cfg := DefaultDaemonConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return DaemonConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := ValidateDaemonConfig(cfg); err != nil {
		return DaemonConfig{}, err
	}
	return cfg, nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.EngineAddr) == "" {
		return fmt.Errorf("client config missing engine_addr")
	}
	if cfg.ConnectTimeout.Duration < 0 || cfg.RequestTimeout.Duration < 0 {
		return fmt.Errorf("client config timeouts must not be negative")
	}
	return nil
}

func ValidateDaemonConfig(cfg DaemonConfig) error {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("daemon config missing listen_addr")
	}
	return nil
}

// duration parses TOML strings like "5s" into a time.Duration.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}
