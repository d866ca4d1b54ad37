package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/minfy-dev/minfy/pkg/buildvars"
	"github.com/minfy-dev/minfy/pkg/config"
	"github.com/minfy-dev/minfy/pkg/logging"
	"github.com/minfy-dev/minfy/pkg/project"
)

var (
	deployEnvFile string
	deployDryRun  bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Build the app and publish it",
	Long: `Build the app and publish it to the bucket of the active environment.

This command will:
- Create and configure the bucket when needed (website hosting, public read, versioning)
- Build the app on the host, or inside Docker when the host build fails or is not possible
- Upload the build output and record the new version as live

Build-time variables come from the active environment in .minfy.json and are
overridden, in order, by --env-file, AWS Secrets Manager and Vault.

Example:
  minfy deploy
  minfy deploy --env-file .env.production`,
	Args: cobra.NoArgs,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringVar(&deployEnvFile, "env-file", "", "Dotenv file with extra build-time variables")
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "Build and publish to an in-memory bucket instead of the cloud")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	s, err := openSession(cmd, deployDryRun)
	if err != nil {
		return err
	}

	plan, err := project.LoadPlan(filepath.Join(projectDir, project.PlanFile))
	if err != nil {
		return fmt.Errorf("%w (run minfy detect first)", err)
	}

	sources, err := variableSources(ctx, s.cfg, s.descriptor.ActiveEnvironment, deployDryRun)
	if err != nil {
		return err
	}
	plan.Variables, err = buildvars.Resolve(ctx, s.descriptor.Variables(), sources...)
	if err != nil {
		return err
	}

	if deployDryRun {
		fmt.Fprintln(out, "Dry run: publishing to an in-memory bucket")
	} else {
		s.printAccount(ctx, out)
	}
	fmt.Fprintf(out, "Deploying %s (%s) to %s...\n", s.engine.Bucket(s.descriptor), plan.Builder, s.descriptor.ActiveEnvironment)

	result, err := s.engine.Deploy(ctx, s.descriptor, plan)
	if err != nil {
		return fmt.Errorf("deployment failed: %w", err)
	}

	fmt.Fprintf(out, "\nDeployed: %s\n", result.URL)
	if result.VersionID != "" {
		fmt.Fprintf(out, "  Version: %s\n", result.VersionID)
	}
	fmt.Fprintln(out, "Next: run minfy status or minfy rollback to manage deployments.")
	return nil
}

// variableSources lists the configured build variable sources in override
// order. Remote secret stores are skipped in dry runs.
func variableSources(ctx context.Context, cfg *config.Config, environment string, dryRun bool) ([]buildvars.Source, error) {
	var sources []buildvars.Source
	if deployEnvFile != "" {
		sources = append(sources, buildvars.EnvFile{Path: deployEnvFile})
	}
	if dryRun {
		if cfg.Secrets.SecretsManagerID != "" || cfg.Secrets.VaultPath != "" {
			logging.Info("dry run: skipping remote secret stores")
		}
		return sources, nil
	}

	if id := cfg.Secrets.SecretsManagerIDFor(environment); id != "" {
		sm, err := buildvars.NewSecretsManager(ctx, cfg.Region, id)
		if err != nil {
			return nil, err
		}
		sources = append(sources, sm)
	}
	if path := cfg.Secrets.VaultPathFor(environment); path != "" {
		v, err := buildvars.NewVault(ctx, &cfg.Secrets.Vault, path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, v)
	}
	return sources, nil
}
