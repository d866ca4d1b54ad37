package buildvars

import (
	"context"
	"fmt"

	"github.com/minfy-dev/minfy/pkg/vault"
)

// secretReader is implemented by *vault.Client.
type secretReader interface {
	ReadSecret(ctx context.Context, path string) (map[string]string, error)
}

// Vault reads build variables from a KV v2 secret.
type Vault struct {
	path   string
	reader secretReader
}

// NewVault authenticates to Vault and returns a source reading path.
func NewVault(ctx context.Context, cfg *vault.Config, path string) (*Vault, error) {
	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := client.Login(ctx); err != nil {
		return nil, fmt.Errorf("failed to log in to vault: %w", err)
	}
	return &Vault{path: path, reader: client}, nil
}

func (v *Vault) Name() string { return "vault " + v.path }

func (v *Vault) Load(ctx context.Context) (map[string]string, error) {
	return v.reader.ReadSecret(ctx, v.path)
}
