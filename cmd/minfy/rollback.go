package main

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/minfy-dev/minfy/pkg/ledger"
	"github.com/minfy-dev/minfy/pkg/storage"
	"github.com/minfy-dev/minfy/pkg/types"
)

var rollbackPrevious bool

// chooseVersion asks which version to serve. Swapped out by tests.
var chooseVersion ledger.Chooser = promptVersion

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Serve an earlier deployment again",
	Long: `Make an earlier deployment of the active environment live again.

Without --previous, the five most recent deployments are listed and one can
be picked. Rolling back never deletes history; the restored version becomes
the newest one.

Example:
  minfy rollback --previous`,
	Args: cobra.NoArgs,
	RunE: runRollback,
}

func init() {
	rollbackCmd.Flags().BoolVar(&rollbackPrevious, "previous", false, "Roll back to the deployment before the current one")
}

func runRollback(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	s, err := openSession(cmd, false)
	if err != nil {
		return err
	}

	mode := ledger.ModeInteractive
	if rollbackPrevious {
		mode = ledger.ModePrevious
	}

	result, err := s.engine.Rollback(cmd.Context(), s.descriptor, mode, chooseVersion)
	switch {
	case errors.Is(err, types.ErrNoSuchBucket):
		fmt.Fprintf(out, "No bucket for env '%s'. Nothing to roll back.\n", s.descriptor.ActiveEnvironment)
		return nil
	case errors.Is(err, types.ErrInsufficientHistory):
		fmt.Fprintln(out, "Only one version found, nothing to roll back.")
		return nil
	case err != nil:
		return fmt.Errorf("rollback failed: %w", err)
	}

	fmt.Fprintf(out, "✓ Rolled back to %s\n", result.VersionID)
	fmt.Fprintf(out, "  Uploaded: %s\n", result.RestoredFrom.Local().Format(timeLayout))
	fmt.Fprintf(out, "  URL: %s\n", result.URL)
	return nil
}

func promptVersion(candidates []storage.Version) (int, error) {
	items := make([]string, len(candidates))
	for i, v := range candidates {
		items[i] = fmt.Sprintf("%s  (%s)", v.ID, v.ModifiedAt.Local().Format(timeLayout))
	}

	prompt := promptui.Select{
		Label: "Select a version to serve",
		Items: items,
		Size:  len(items),
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return 0, fmt.Errorf("version selection aborted: %w", err)
	}
	return idx, nil
}
