// Package vault reads build-time variables from a HashiCorp Vault KV v2
// secrets engine.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// Config holds the Vault server address and how to log in.
type Config struct {
	// Server address (e.g., "http://127.0.0.1:8200")
	Address string `yaml:"address" env:"ADDR"`

	// Login settings
	Auth AuthConfig `yaml:"auth" envPrefix:"AUTH_"`

	// Skip TLS certificate verification (local dev servers only)
	TLSSkipVerify bool `yaml:"tls_skip_verify" env:"SKIP_VERIFY"`
}

// AuthConfig selects the login method. Method is "token" (default) or "approle".
type AuthConfig struct {
	Method string `yaml:"method" env:"METHOD"`

	// Token for the token method
	Token string `yaml:"token" env:"TOKEN"`

	// AppRole credentials
	RoleID   string `yaml:"role_id" env:"ROLE_ID"`
	SecretID string `yaml:"secret_id" env:"SECRET_ID"`
}

// Client reads KV v2 secrets.
type Client struct {
	api  *vault.Client
	auth AuthConfig
}

// NewClient creates a client for cfg.Address. Call Login before reading.
//
// Example:
//
//	client, err := vault.NewClient(&vault.Config{
//	    Address: "http://127.0.0.1:8200",
//	    Auth:    vault.AuthConfig{Token: "hvs.xxx"},
//	})
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("vault address is required")
	}

	apiConfig := vault.DefaultConfig()
	apiConfig.Address = cfg.Address
	if cfg.TLSSkipVerify {
		if err := apiConfig.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	api, err := vault.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	return &Client{api: api, auth: cfg.Auth}, nil
}

// Login obtains a client token with the configured method.
func (c *Client) Login(ctx context.Context) error {
	token, err := c.clientToken(ctx)
	if err != nil {
		return err
	}
	c.api.SetToken(token)
	return nil
}

func (c *Client) clientToken(ctx context.Context) (string, error) {
	switch c.auth.Method {
	case "token", "":
		if c.auth.Token == "" {
			return "", fmt.Errorf("vault token is required for token authentication")
		}
		return c.auth.Token, nil

	case "approle":
		if c.auth.RoleID == "" || c.auth.SecretID == "" {
			return "", fmt.Errorf("role_id and secret_id are required for approle authentication")
		}
		resp, err := c.api.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   c.auth.RoleID,
			"secret_id": c.auth.SecretID,
		})
		if err != nil {
			return "", fmt.Errorf("approle login failed: %w", err)
		}
		if resp == nil || resp.Auth == nil {
			return "", fmt.Errorf("approle login returned no auth token")
		}
		return resp.Auth.ClientToken, nil

	default:
		return "", fmt.Errorf("unsupported auth method: %s", c.auth.Method)
	}
}

// SplitPath splits "<mount>/<secret>" into the KV mount and the secret path.
// A "data/" segment after the mount, as used by the raw HTTP API, is dropped.
func SplitPath(path string) (mount, secret string, err error) {
	mount, secret, ok := strings.Cut(strings.Trim(path, "/"), "/")
	secret = strings.TrimPrefix(secret, "data/")
	if !ok || mount == "" || secret == "" {
		return "", "", fmt.Errorf("invalid vault path %q (want <mount>/<secret>)", path)
	}
	return mount, secret, nil
}

// ReadSecret fetches the latest version of a KV v2 secret. Values that are
// not strings are formatted with fmt.Sprint.
func (c *Client) ReadSecret(ctx context.Context, path string) (map[string]string, error) {
	mount, secretPath, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	secret, err := c.api.KVv2(mount).Get(ctx, secretPath)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return nil, fmt.Errorf("secret not found at path: %s", path)
		}
		return nil, fmt.Errorf("failed to read secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret at %s has no data (deleted version?)", path)
	}

	values := make(map[string]string, len(secret.Data))
	for k, v := range secret.Data {
		if s, ok := v.(string); ok {
			values[k] = s
		} else {
			values[k] = fmt.Sprint(v)
		}
	}
	return values, nil
}

// GetSecret fetches one key of a KV v2 secret.
func (c *Client) GetSecret(ctx context.Context, path, key string) (string, error) {
	values, err := c.ReadSecret(ctx, path)
	if err != nil {
		return "", err
	}
	if value, ok := values[key]; ok {
		return value, nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "", fmt.Errorf("key %s not found in secret at path: %s (available: %v)", key, path, keys)
}
