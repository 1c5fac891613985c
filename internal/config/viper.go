// Package config provides Viper-based hierarchical configuration management
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the configuration.
const EnvPrefix = "CEP"

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Portal struct {
		SubmitURL           string `mapstructure:"submit_url" yaml:"submit_url"`
		RetrieveURL         string `mapstructure:"retrieve_url" yaml:"retrieve_url"`
		Email               string `mapstructure:"email" yaml:"email"`
		Format              string `mapstructure:"format" yaml:"format"`
		MaxSubmitAttempts   int    `mapstructure:"max_submit_attempts" yaml:"max_submit_attempts"`
		PollIntervalSeconds int    `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds"`
		TimeoutSeconds      int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	} `mapstructure:"portal" yaml:"portal"`

	Browser struct {
		ExecPath string `mapstructure:"exec_path" yaml:"exec_path"`
		Headless bool   `mapstructure:"headless" yaml:"headless"`
	} `mapstructure:"browser" yaml:"browser"`

	Work struct {
		Directory string `mapstructure:"directory" yaml:"directory"`
	} `mapstructure:"work" yaml:"work"`

	Sessions struct {
		MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	} `mapstructure:"sessions" yaml:"sessions"`

	Server struct {
		Port        int `mapstructure:"port" yaml:"port"`
		MaxUploadMB int `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	} `mapstructure:"server" yaml:"server"`

	Institutions struct {
		File string `mapstructure:"file" yaml:"file"`
	} `mapstructure:"institutions" yaml:"institutions"`
}

// PollInterval returns the portal poll delay.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Portal.PollIntervalSeconds) * time.Second
}

// Timeout returns the overall deadline of one portal run.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Portal.TimeoutSeconds) * time.Second
}

// InitializeConfig initializes Viper configuration with hierarchical loading
func InitializeConfig() (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.cep-verify")
	v.AddConfigPath(".cep-verify")
	v.AddConfigPath(".")

	// 3. Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("portal.submit_url", "https://www.banxico.org.mx/cep-scl/inicio.do")
	v.SetDefault("portal.retrieve_url", "https://www.banxico.org.mx/cep-scl/inicio2.do")
	v.SetDefault("portal.email", "")
	v.SetDefault("portal.format", "2")
	v.SetDefault("portal.max_submit_attempts", 3)
	v.SetDefault("portal.poll_interval_seconds", 3)
	v.SetDefault("portal.timeout_seconds", 600)

	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.headless", true)

	v.SetDefault("work.directory", "work")

	v.SetDefault("sessions.max_concurrent", 2)

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.max_upload_mb", 10)

	v.SetDefault("institutions.file", "")
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if config.Portal.MaxSubmitAttempts < 1 {
		return fmt.Errorf("portal.max_submit_attempts must be at least 1, got: %d", config.Portal.MaxSubmitAttempts)
	}

	if config.Portal.PollIntervalSeconds < 1 {
		return fmt.Errorf("portal.poll_interval_seconds must be at least 1, got: %d", config.Portal.PollIntervalSeconds)
	}

	if config.Portal.TimeoutSeconds < config.Portal.PollIntervalSeconds {
		return fmt.Errorf("portal.timeout_seconds (%d) must not be shorter than portal.poll_interval_seconds (%d)",
			config.Portal.TimeoutSeconds, config.Portal.PollIntervalSeconds)
	}

	if config.Sessions.MaxConcurrent < 1 {
		return fmt.Errorf("sessions.max_concurrent must be at least 1, got: %d", config.Sessions.MaxConcurrent)
	}

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", config.Server.Port)
	}

	if config.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be at least 1, got: %d", config.Server.MaxUploadMB)
	}

	return nil
}
