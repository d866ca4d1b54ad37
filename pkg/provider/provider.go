// Package provider selects the storage backend a site is hosted on.
// This abstraction allows minfy to publish to several clouds with one
// deployment engine.
package provider

import (
	"context"
	"fmt"

	"github.com/minfy-dev/minfy/pkg/config"
	"github.com/minfy-dev/minfy/pkg/storage"
	"github.com/minfy-dev/minfy/pkg/storage/aws"
	"github.com/minfy-dev/minfy/pkg/storage/gcp"
	"github.com/minfy-dev/minfy/pkg/storage/memory"
)

// Factory creates a storage backend based on the configuration.
//
// Supported providers: aws, gcp, memory
//
// Example:
//
//	backend, err := provider.Factory(ctx, cfg)
//	if err != nil {
//	  log.Fatal(err)
//	}
//
// Returns an error if the provider is not supported.
func Factory(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Provider {
	case "aws":
		return aws.New(ctx, cfg.Region, &aws.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			SessionToken:    cfg.SessionToken,
			Profile:         cfg.Profile,
		})
	case "gcp":
		return gcp.New(ctx, &gcp.Config{
			ProjectID:       cfg.GCP.ProjectID,
			Region:          cfg.Region,
			CredentialsFile: cfg.GCP.CredentialsFile,
		})
	case "memory":
		return memory.New(cfg.Region), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
