// Package config loads the environment and project-file configuration for
// the call-bell reporting data layer.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/careops/callbell/pkg/callbell"
)

// ErrConfigNotFound is returned when the project config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// ConfigFileName is the optional project file next to the working directory.
const ConfigFileName = "callbell.yaml"

// DefaultAppName tags connections in the server's session views.
const DefaultAppName = "call-bell-report-app"

// Config is the fully resolved configuration for one process.
type Config struct {
	AzureTenantID     string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID     string `yaml:"azure_client_id,omitempty"`
	AzureClientSecret string `yaml:"-"` // secrets never come from the project file

	SQLServer   string `yaml:"sql_server,omitempty"`
	SQLDatabase string `yaml:"sql_database,omitempty"`
	AppName     string `yaml:"app_name,omitempty"`

	// LocalDev switches to a mocked identity instead of proxy headers.
	LocalDev     bool   `yaml:"local_dev,omitempty"`
	DevUserEmail string `yaml:"dev_user_email,omitempty"`
}

// Credentials returns the app registration credentials.
func (c *Config) Credentials() (tenantID, clientID, clientSecret string) {
	return c.AzureTenantID, c.AzureClientID, c.AzureClientSecret
}

// QueryConfig returns the connection target.
func (c *Config) QueryConfig() *callbell.QueryConfig {
	return &callbell.QueryConfig{
		Server:   c.SQLServer,
		Database: c.SQLDatabase,
		AppName:  c.AppName,
	}
}

// Validate checks that every required value is present. It returns a
// multi-error naming each missing variable.
func (c *Config) Validate() error {
	var errs []error

	required := []struct {
		name  string
		value string
	}{
		{"AZURE_CLIENT_ID", c.AzureClientID},
		{"AZURE_CLIENT_SECRET", c.AzureClientSecret},
		{"AZURE_TENANT_ID", c.AzureTenantID},
		{"SQL_SERVER", c.SQLServer},
		{"SQL_DATABASE", c.SQLDatabase},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required: %w", r.name, callbell.ErrInvalidConfig))
		}
	}

	return errors.Join(errs...)
}

// Load resolves configuration with the precedence: environment variables
// (including a .env file loaded via godotenv when present) over the
// optional callbell.yaml project file. Missing .env and missing project
// file are both fine; Validate reports what is actually absent.
func Load(dir string) (*Config, error) {
	// .env is a local-development convenience; absence is not an error.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg := &Config{AppName: DefaultAppName}

	if file, err := loadFile(dir); err == nil {
		merge(cfg, file)
	} else if !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}

	fromEnv(cfg)
	return cfg, nil
}

// loadFile reads the optional project configuration file.
func loadFile(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ConfigFileName, err)
	}
	return &cfg, nil
}

func merge(dst, src *Config) {
	if src.AzureTenantID != "" {
		dst.AzureTenantID = src.AzureTenantID
	}
	if src.AzureClientID != "" {
		dst.AzureClientID = src.AzureClientID
	}
	if src.SQLServer != "" {
		dst.SQLServer = src.SQLServer
	}
	if src.SQLDatabase != "" {
		dst.SQLDatabase = src.SQLDatabase
	}
	if src.AppName != "" {
		dst.AppName = src.AppName
	}
	if src.LocalDev {
		dst.LocalDev = true
	}
	if src.DevUserEmail != "" {
		dst.DevUserEmail = src.DevUserEmail
	}
}

func fromEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.AzureTenantID, "AZURE_TENANT_ID")
	set(&cfg.AzureClientID, "AZURE_CLIENT_ID")
	set(&cfg.AzureClientSecret, "AZURE_CLIENT_SECRET")
	set(&cfg.SQLServer, "SQL_SERVER")
	set(&cfg.SQLDatabase, "SQL_DATABASE")
	set(&cfg.AppName, "APP_NAME")
	set(&cfg.DevUserEmail, "DEV_USER_EMAIL")

	if v := os.Getenv("LOCAL_DEV"); v != "" {
		cfg.LocalDev = strings.EqualFold(v, "true")
	}
}

// Save writes the non-secret fields to the project configuration file.
// Used by the interactive setup wizard.
func Save(dir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0o600)
}
