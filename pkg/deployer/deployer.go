// Package deployer wires naming, provisioning, building, uploading and the
// version ledger into the deploy, status, rollback and cleanup flows.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minfy-dev/minfy/pkg/artifact"
	"github.com/minfy-dev/minfy/pkg/builder"
	"github.com/minfy-dev/minfy/pkg/ledger"
	"github.com/minfy-dev/minfy/pkg/logging"
	"github.com/minfy-dev/minfy/pkg/naming"
	"github.com/minfy-dev/minfy/pkg/project"
	"github.com/minfy-dev/minfy/pkg/provisioner"
	"github.com/minfy-dev/minfy/pkg/storage"
	"github.com/minfy-dev/minfy/pkg/types"
	"github.com/minfy-dev/minfy/pkg/uploader"
)

// Builder produces a static site from a plan.
type Builder interface {
	Build(ctx context.Context, plan *project.Plan, appDir string, vars map[string]string) (*builder.Output, error)
}

// Options configures an Engine.
type Options struct {
	// Out receives progress lines; nil discards them
	Out io.Writer

	// Progress receives the upload progress bar; nil disables it
	Progress io.Writer

	// UploadConcurrency bounds parallel uploads; zero uses the default
	UploadConcurrency int
}

// Engine runs deployment flows against one storage backend.
type Engine struct {
	backend     storage.Backend
	builder     Builder
	provisioner *provisioner.Provisioner
	uploader    *uploader.Uploader
	ledger      *ledger.Ledger
	out         io.Writer
}

// New creates an engine publishing through backend.
func New(backend storage.Backend, b Builder, opts Options) *Engine {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Engine{
		backend:     backend,
		builder:     b,
		provisioner: provisioner.New(backend, out),
		uploader:    uploader.New(backend, opts.Progress, opts.UploadConcurrency),
		ledger:      ledger.New(backend),
		out:         out,
	}
}

// Bucket returns the bucket d is published to.
func (e *Engine) Bucket(d *project.Descriptor) string {
	return naming.Resolve(d)
}

// Deploy builds the app described by d and plan and publishes it.
// Build-time variables are taken from plan.Variables.
//
// Incomplete bucket configuration and a failed marker write are reported as
// warnings in the result; the deploy still succeeds.
func (e *Engine) Deploy(ctx context.Context, d *project.Descriptor, plan *project.Plan) (*types.DeployResult, error) {
	bucket := naming.Resolve(d)
	logging.Info("deploy started", "bucket", bucket, "environment", d.ActiveEnvironment, "builder", string(plan.Builder))
	result := &types.DeployResult{Bucket: bucket, URL: e.backend.WebsiteURL(bucket)}

	if err := e.provisioner.Ensure(ctx, bucket); err != nil {
		if !provisioner.IsPartial(err) {
			return nil, err
		}
		e.warn(result, err)
	}

	out, err := e.builder.Build(ctx, planFor(d, plan), d.AppDir(), plan.Variables)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := out.Cleanup(); err != nil {
			logging.Warn("failed to remove build output", "dir", out.Dir, "error", err)
		}
	}()
	result.Strategy = string(out.Strategy)
	fmt.Fprintf(e.out, "✓ Build complete (%s)\n", out.Strategy)

	scan, err := artifact.ScanDir(out.Dir)
	if err != nil {
		return nil, err
	}

	count, err := e.uploader.Upload(ctx, bucket, scan)
	if err != nil {
		return nil, err
	}
	result.FilesUploaded = count
	fmt.Fprintf(e.out, "✓ Uploaded %d files to %s\n", count, bucket)

	versionID, err := e.ledger.MarkCurrent(ctx, bucket)
	if err != nil {
		e.warn(result, fmt.Errorf("%w; status and rollback are unreliable until the next deploy", err))
	} else {
		result.VersionID = versionID
	}

	logging.Info("deploy finished", "bucket", bucket, "files", count, "version", versionID)
	return result, nil
}

// planFor applies the environment's build command override to plan.
func planFor(d *project.Descriptor, plan *project.Plan) *project.Plan {
	override := d.Envs[d.ActiveEnvironment].BuildCommand
	if override == "" || override == plan.BuildCommand {
		return plan
	}
	p := *plan
	p.BuildCommand = override
	return &p
}

func (e *Engine) warn(result *types.DeployResult, err error) {
	logging.Warn("deploy warning", "bucket", result.Bucket, "error", err)
	fmt.Fprintf(e.out, "⚠ %v\n", err)
	result.Warnings = append(result.Warnings, err.Error())
}

// Status reports the live version of d's site. It returns errors matching
// types.ErrNoSuchBucket and types.ErrNoMarker for sites that were never
// deployed or deployed without a marker.
func (e *Engine) Status(ctx context.Context, d *project.Descriptor) (*types.DeployStatus, error) {
	bucket := naming.Resolve(d)

	current, err := e.ledger.Current(ctx, bucket)
	if err != nil {
		return nil, err
	}

	history, err := e.ledger.History(ctx, bucket)
	if err != nil {
		return nil, err
	}

	status := &types.DeployStatus{
		Bucket:        bucket,
		URL:           e.backend.WebsiteURL(bucket),
		VersionID:     current,
		Ordinal:       ledger.Ordinal(history, current),
		TotalVersions: len(history),
	}
	for _, v := range history {
		if v.ID == current {
			status.DeployedAt = v.ModifiedAt
			break
		}
	}
	return status, nil
}

// Rollback makes an earlier version of d's site live. The target is chosen
// by mode; choose is only consulted in ledger.ModeInteractive.
func (e *Engine) Rollback(ctx context.Context, d *project.Descriptor, mode ledger.Mode, choose ledger.Chooser) (*types.RollbackResult, error) {
	bucket := naming.Resolve(d)

	history, err := e.ledger.History(ctx, bucket)
	if err != nil {
		return nil, err
	}

	target, err := ledger.SelectTarget(history, mode, choose)
	if err != nil {
		return nil, err
	}

	if err := e.ledger.Revert(ctx, bucket, target); err != nil {
		return nil, err
	}
	logging.Info("rolled back", "bucket", bucket, "version", target.ID, "mode", mode.String())

	return &types.RollbackResult{
		Bucket:       bucket,
		URL:          e.backend.WebsiteURL(bucket),
		VersionID:    target.ID,
		RestoredFrom: target.ModifiedAt,
	}, nil
}

// Cleanup deletes every object version in d's bucket and then the bucket.
func (e *Engine) Cleanup(ctx context.Context, d *project.Descriptor) (*types.CleanupResult, error) {
	bucket := naming.Resolve(d)

	exists, err := e.backend.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", types.ErrNoSuchBucket, bucket)
	}

	deleted, err := e.backend.DeleteAllVersions(ctx, bucket)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(e.out, "✓ Deleted %d object versions\n", deleted)

	if err := e.backend.DeleteBucket(ctx, bucket); err != nil {
		return nil, err
	}
	logging.Info("bucket deleted", "bucket", bucket, "versions", deleted)

	return &types.CleanupResult{Bucket: bucket, VersionsDeleted: deleted}, nil
}

// IsNothingToDo reports whether err is an expected "not deployed yet" state
// rather than a failure.
func IsNothingToDo(err error) bool {
	return errors.Is(err, types.ErrNoSuchBucket) ||
		errors.Is(err, types.ErrNoMarker) ||
		errors.Is(err, types.ErrInsufficientHistory)
}
