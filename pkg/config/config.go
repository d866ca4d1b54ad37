// Package config loads the global minfy settings from ~/.minfy/config.yaml,
// overridden by MINFY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/minfy-dev/minfy/pkg/vault"
)

const (
	// DefaultProvider hosts sites on S3.
	DefaultProvider = "aws"

	// DefaultRegion is used when none is configured.
	DefaultRegion = "ap-south-1"

	// DefaultUploadConcurrency bounds parallel uploads.
	DefaultUploadConcurrency = 8

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "MINFY_"

	dirName        = ".minfy"
	fileName       = "config.yaml"
	envPlaceholder = "{env}"
)

// Config is the global minfy configuration.
//
// Example YAML:
//
//	provider: aws
//	region: ap-south-1
//	aws_access_key_id: AKIA...
//	aws_secret_access_key: ...
//	upload:
//	  concurrency: 16
type Config struct {
	// Storage provider: aws, gcp or memory
	Provider string `yaml:"provider" env:"PROVIDER"`

	// Region buckets are created in
	Region string `yaml:"region" env:"REGION"`

	// AWS credentials - optional, the SDK default chain is used when empty
	AccessKeyID     string `yaml:"aws_access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"aws_secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `yaml:"aws_session_token,omitempty" env:"AWS_SESSION_TOKEN"`
	Profile         string `yaml:"profile,omitempty" env:"AWS_PROFILE"`

	// Google Cloud settings (when provider is gcp)
	GCP GCPConfig `yaml:"gcp,omitempty" envPrefix:"GCP_"`

	// Upload tuning
	Upload UploadConfig `yaml:"upload,omitempty" envPrefix:"UPLOAD_"`

	// External build-variable sources
	Secrets SecretsConfig `yaml:"secrets,omitempty" envPrefix:"SECRETS_"`
}

// GCPConfig holds Google Cloud Storage settings.
type GCPConfig struct {
	// Project that owns the buckets
	ProjectID string `yaml:"project_id" env:"PROJECT_ID"`

	// Path to a service account key file - optional
	CredentialsFile string `yaml:"credentials_file,omitempty" env:"CREDENTIALS_FILE"`
}

// UploadConfig tunes the artifact uploader.
type UploadConfig struct {
	// Parallel uploads
	Concurrency int `yaml:"concurrency" env:"CONCURRENCY"`
}

// SecretsConfig selects where additional build variables come from.
// Paths may contain {env}, replaced by the active environment.
type SecretsConfig struct {
	// AWS Secrets Manager secret holding a JSON object of variables - optional
	SecretsManagerID string `yaml:"secrets_manager_id,omitempty" env:"MANAGER_ID"`

	// Vault KV v2 path (e.g. "secret/data/myapp/{env}") - optional
	VaultPath string `yaml:"vault_path,omitempty" env:"VAULT_PATH"`

	// Vault connection settings, used when VaultPath is set
	Vault vault.Config `yaml:"vault,omitempty" envPrefix:"VAULT_"`
}

// Dir returns ~/.minfy.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// DefaultPath returns ~/.minfy/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Provider: DefaultProvider,
		Region:   DefaultRegion,
		Upload:   UploadConfig{Concurrency: DefaultUploadConcurrency},
	}
}

// Load reads the configuration at path, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.Upload.Concurrency == 0 {
		c.Upload.Concurrency = DefaultUploadConcurrency
	}
}

// Validate checks if the configuration has all required fields and valid values.
func (c *Config) Validate() error {
	switch c.Provider {
	case "aws", "memory":
	case "gcp":
		if c.GCP.ProjectID == "" {
			return fmt.Errorf("gcp.project_id is required for the gcp provider")
		}
	default:
		return fmt.Errorf("unsupported provider: %s (supported: aws, gcp, memory)", c.Provider)
	}

	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("aws_access_key_id and aws_secret_access_key must be set together")
	}

	if c.Upload.Concurrency < 0 {
		return fmt.Errorf("upload.concurrency must be positive")
	}

	if c.Secrets.VaultPath != "" && c.Secrets.Vault.Address == "" {
		return fmt.Errorf("secrets.vault.address is required when secrets.vault_path is set")
	}

	return nil
}

// VaultPathFor returns the Vault path with {env} replaced by environment.
func (s SecretsConfig) VaultPathFor(environment string) string {
	return strings.ReplaceAll(s.VaultPath, envPlaceholder, environment)
}

// SecretsManagerIDFor returns the secret ID with {env} replaced by environment.
func (s SecretsConfig) SecretsManagerIDFor(environment string) string {
	return strings.ReplaceAll(s.SecretsManagerID, envPlaceholder, environment)
}
