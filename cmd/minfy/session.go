package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/minfy-dev/minfy/pkg/builder"
	"github.com/minfy-dev/minfy/pkg/config"
	"github.com/minfy-dev/minfy/pkg/deployer"
	"github.com/minfy-dev/minfy/pkg/logging"
	"github.com/minfy-dev/minfy/pkg/process"
	"github.com/minfy-dev/minfy/pkg/project"
	"github.com/minfy-dev/minfy/pkg/provider"
	"github.com/minfy-dev/minfy/pkg/storage"
)

// Swapped out by tests.
var (
	newBackend = provider.Factory
	newRunner  = func() process.Runner { return process.NewExecRunner() }
)

// session bundles what every command needs: global config, the project
// descriptor and an engine bound to the configured backend.
type session struct {
	cfg        *config.Config
	descriptor *project.Descriptor
	backend    storage.Backend
	engine     *deployer.Engine
}

func openSession(cmd *cobra.Command, dryRun bool) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if dryRun {
		cfg.Provider = "memory"
	}

	d, err := project.LoadDescriptor(filepath.Join(projectDir, project.DescriptorFile))
	if err != nil {
		return nil, fmt.Errorf("%w (run minfy init first)", err)
	}

	backend, err := newBackend(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", cfg.Provider, err)
	}
	logging.Debug("session opened", "provider", backend.Name(), "region", backend.Region(), "environment", d.ActiveEnvironment)

	out := cmd.OutOrStdout()
	engine := deployer.New(backend, builder.New(newRunner(), out), deployer.Options{
		Out:               out,
		Progress:          cmd.ErrOrStderr(),
		UploadConcurrency: cfg.Upload.Concurrency,
	})

	return &session{cfg: cfg, descriptor: d, backend: backend, engine: engine}, nil
}

func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return config.Load(path)
}

// printAccount reports the cloud account when the backend can identify it.
// Failures are logged only.
func (s *session) printAccount(ctx context.Context, out io.Writer) {
	id, ok := s.backend.(storage.AccountIdentifier)
	if !ok {
		return
	}
	account, err := id.Account(ctx)
	if err != nil {
		logging.Warn("failed to identify account", "provider", s.backend.Name(), "error", err)
		return
	}
	fmt.Fprintf(out, "Account: %s (%s, %s)\n", account, s.backend.Name(), s.backend.Region())
}
