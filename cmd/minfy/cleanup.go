package main

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/minfy-dev/minfy/pkg/types"
)

var cleanupYes bool

// confirmCleanup asks before a bucket is deleted. Swapped out by tests.
var confirmCleanup = promptConfirm

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete the bucket of the active environment",
	Long: `Delete every object version in the bucket of the active environment and
then the bucket itself. The site and its rollback history are gone afterwards.

Example:
  minfy cleanup --yes`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	s, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	bucket := s.engine.Bucket(s.descriptor)

	if !cleanupYes {
		ok, err := confirmCleanup(fmt.Sprintf("Delete bucket %s and all of its versions", bucket))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Cleanup cancelled.")
			return nil
		}
	}

	fmt.Fprintf(out, "Deleting all objects and versions in bucket: %s\n", bucket)
	result, err := s.engine.Cleanup(cmd.Context(), s.descriptor)
	switch {
	case errors.Is(err, types.ErrNoSuchBucket):
		fmt.Fprintf(out, "No bucket for env '%s'. Nothing to clean up.\n", s.descriptor.ActiveEnvironment)
		return nil
	case err != nil:
		return fmt.Errorf("failed to delete bucket %s: %w", bucket, err)
	}

	fmt.Fprintf(out, "✓ Bucket %s deleted\n", result.Bucket)
	return nil
}

func promptConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation failed: %w", err)
	}
	return true, nil
}
