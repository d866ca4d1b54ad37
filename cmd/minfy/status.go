package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minfy-dev/minfy/pkg/types"
)

const timeLayout = "2006-01-02 15:04"

var statusVerbose bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the live deployment of the active environment",
	Long: `Show which deployment of the active environment is live.

Deployments are numbered from #1, the oldest one still kept in the bucket.

Example:
  minfy status
  minfy status --verbose`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "Show the raw version identifier")
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	s, err := openSession(cmd, false)
	if err != nil {
		return err
	}

	status, err := s.engine.Status(cmd.Context(), s.descriptor)
	switch {
	case errors.Is(err, types.ErrNoSuchBucket):
		fmt.Fprintf(out, "No bucket for env '%s'. Deploy first.\n", s.descriptor.ActiveEnvironment)
		return nil
	case errors.Is(err, types.ErrNoMarker):
		fmt.Fprintln(out, "Bucket exists but no deploy marker found. Deploy first.")
		return nil
	case err != nil:
		return fmt.Errorf("failed to read status: %w", err)
	}

	tag := "(unknown)"
	if status.Ordinal > 0 {
		tag = fmt.Sprintf("deployment #%d", status.Ordinal)
	}

	fmt.Fprintf(out, "URL:      %s\n", status.URL)
	if status.DeployedAt.IsZero() {
		fmt.Fprintf(out, "Current:  %s\n", tag)
	} else {
		fmt.Fprintf(out, "Current:  %s  (%s)\n", tag, status.DeployedAt.Local().Format(timeLayout))
	}
	if statusVerbose {
		fmt.Fprintf(out, "Version:  VersionId = %s\n", status.VersionID)
		fmt.Fprintf(out, "Bucket:   %s (%d versions)\n", status.Bucket, status.TotalVersions)
	}
	return nil
}
