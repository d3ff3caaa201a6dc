// Package config provides configuration management using Viper.
// It supports loading from config files, environment variables, and defaults.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/openldm/ldm/internal/hardware/pci"
	"github.com/openldm/ldm/internal/manager"
	"github.com/openldm/ldm/internal/pciids"
)

// Config holds all configuration values for the ldm tool.
type Config struct {
	// DevMode enables development-friendly logging and behaviors
	DevMode bool `mapstructure:"dev_mode"`

	// LogLevel sets the minimum log level (debug, info, warn, error)
	LogLevel string `mapstructure:"log_level"`

	// SysfsRoot is the sysfs mount the PCI scan reads from
	SysfsRoot string `mapstructure:"sysfs_root"`

	// ModaliasDirs are the directories searched for provider
	// plugin files, in load order
	ModaliasDirs []string `mapstructure:"modalias_dirs"`

	// PCIIDsPaths are the candidate pci.ids locations, first
	// existing file wins
	PCIIDsPaths []string `mapstructure:"pciids_paths"`

	// PCIIDsURL is where update-pciids downloads from
	PCIIDsURL string `mapstructure:"pciids_url"`

	// PCIIDsCache is where update-pciids stores the download
	PCIIDsCache string `mapstructure:"pciids_cache"`

	// ListenAddr is the serve command's bind address
	ListenAddr string `mapstructure:"listen_addr"`

	// AuthToken guards the HTTP API when non-empty
	AuthToken string `mapstructure:"auth_token"`

	// ReportURL is the inventory endpoint submit posts reports to;
	// empty disables submission
	ReportURL string `mapstructure:"report_url"`

	// ReportToken authenticates report submissions
	ReportToken string `mapstructure:"report_token"`

	// HTTPTimeout bounds outbound HTTP requests
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// defaultPCIIDsCache is where a downloaded pci.ids lands.
const defaultPCIIDsCache = "/var/lib/ldm/pci.ids"

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		DevMode:      false,
		LogLevel:     "info",
		SysfsRoot:    pci.DefaultSysfsRoot,
		ModaliasDirs: manager.DefaultModaliasDirs,
		// The refreshed cache outranks distribution copies.
		PCIIDsPaths: append([]string{defaultPCIIDsCache}, pciids.DefaultPaths...),
		PCIIDsURL:   pciids.DefaultURL,
		PCIIDsCache: defaultPCIIDsCache,
		ListenAddr:  "127.0.0.1:8441",
		AuthToken:   "",
		ReportURL:   "",
		ReportToken: "",
		HTTPTimeout: 30 * time.Second,
	}
}

// Load reads configuration from environment variables and config files.
// Environment variables take precedence over config file values.
// All environment variables are prefixed with "LDM_" (e.g., LDM_LOG_LEVEL).
func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	defaults := DefaultConfig()
	v.SetDefault("dev_mode", defaults.DevMode)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("sysfs_root", defaults.SysfsRoot)
	v.SetDefault("modalias_dirs", defaults.ModaliasDirs)
	v.SetDefault("pciids_paths", defaults.PCIIDsPaths)
	v.SetDefault("pciids_url", defaults.PCIIDsURL)
	v.SetDefault("pciids_cache", defaults.PCIIDsCache)
	v.SetDefault("listen_addr", defaults.ListenAddr)
	v.SetDefault("auth_token", defaults.AuthToken)
	v.SetDefault("report_url", defaults.ReportURL)
	v.SetDefault("report_token", defaults.ReportToken)
	v.SetDefault("http_timeout", defaults.HTTPTimeout)

	// Environment variables are prefixed with LDM_ and use underscores.
	// Example: LDM_SYSFS_ROOT=/mnt/sys, LDM_MODALIAS_DIRS=/a,/b
	v.SetEnvPrefix("LDM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Optional: look for config file
	v.SetConfigName("ldm")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")         // Current directory
	v.AddConfigPath("/etc/ldm/") // System-wide config

	// Read config file if it exists (not an error if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is acceptable - we'll use defaults + env vars
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log_level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	if c.SysfsRoot == "" {
		return fmt.Errorf("sysfs_root must not be empty")
	}

	if c.PCIIDsURL == "" {
		return fmt.Errorf("pciids_url must not be empty")
	}

	if c.PCIIDsCache == "" {
		return fmt.Errorf("pciids_cache must not be empty")
	}

	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}

	// Report submission is optional, but a configured endpoint has
	// to be a usable absolute URL.
	if c.ReportURL != "" {
		u, err := url.Parse(c.ReportURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid report_url %q: must be an absolute http(s) URL", c.ReportURL)
		}
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive, got %v", c.HTTPTimeout)
	}

	return nil
}

// String returns a string representation of the config (useful for
// logging). Tokens are never included.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{DevMode: %v, LogLevel: %s, SysfsRoot: %s, ModaliasDirs: %v, ListenAddr: %s, ReportURL: %s, HTTPTimeout: %v}",
		c.DevMode, c.LogLevel, c.SysfsRoot, c.ModaliasDirs, c.ListenAddr, c.ReportURL, c.HTTPTimeout,
	)
}
