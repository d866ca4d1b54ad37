// Package buildvars assembles the build-time variables of a deploy from the
// project's per-environment settings and optional external sources: .env
// files, AWS Secrets Manager and HashiCorp Vault.
package buildvars

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/minfy-dev/minfy/pkg/logging"
)

// Source provides build-time variables.
type Source interface {
	// Name identifies the source in logs and errors
	Name() string

	// Load returns the variables the source provides
	Load(ctx context.Context) (map[string]string, error)
}

// Resolve merges base with every source in order; later sources override
// earlier ones. The returned map is new and may be modified by the caller.
func Resolve(ctx context.Context, base map[string]string, sources ...Source) (map[string]string, error) {
	vars := make(map[string]string, len(base))
	for k, v := range base {
		vars[k] = v
	}

	for _, src := range sources {
		loaded, err := src.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load build variables from %s: %w", src.Name(), err)
		}
		for k, v := range loaded {
			if old, ok := vars[k]; ok && old != v {
				logging.Debug("build variable overridden", "name", k, "source", src.Name())
			}
			vars[k] = v
		}
		logging.Info("build variables loaded", "source", src.Name(), "count", len(loaded))
	}

	return vars, nil
}

// EnvFile reads KEY=VALUE pairs from a dotenv file.
type EnvFile struct {
	Path string
}

func (f EnvFile) Name() string { return "env file " + f.Path }

func (f EnvFile) Load(_ context.Context) (map[string]string, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Path, err)
	}
	defer file.Close()

	vars, err := godotenv.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.Path, err)
	}
	return vars, nil
}
