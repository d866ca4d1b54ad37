// Package provisioner makes sure a bucket exists and is configured for public
// static website hosting with object versioning.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minfy-dev/minfy/pkg/logging"
	"github.com/minfy-dev/minfy/pkg/storage"
	"github.com/minfy-dev/minfy/pkg/types"
)

// EntryDocument is served for the site root and for every unknown path, so
// client-side routing works for single-page apps.
const EntryDocument = "index.html"

// StepError records one failed configuration step.
type StepError struct {
	Step string
	Err  error
}

// ProvisioningError lists the configuration steps that failed after the
// bucket was known to exist. It matches types.ErrProvisioningPartial.
type ProvisioningError struct {
	Bucket string
	Steps  []StepError
}

func (e *ProvisioningError) Error() string {
	parts := make([]string, len(e.Steps))
	for i, s := range e.Steps {
		parts[i] = fmt.Sprintf("%s: %v", s.Step, s.Err)
	}
	return fmt.Sprintf("%s for %s: %s", types.ErrProvisioningPartial, e.Bucket, strings.Join(parts, "; "))
}

func (e *ProvisioningError) Is(target error) bool {
	return target == types.ErrProvisioningPartial
}

func (e *ProvisioningError) Unwrap() []error {
	errs := make([]error, len(e.Steps))
	for i, s := range e.Steps {
		errs[i] = s.Err
	}
	return errs
}

// Provisioner applies bucket configuration through a storage backend.
type Provisioner struct {
	backend storage.Backend
	out     io.Writer
}

// New creates a provisioner writing progress lines to out.
func New(backend storage.Backend, out io.Writer) *Provisioner {
	if out == nil {
		out = io.Discard
	}
	return &Provisioner{backend: backend, out: out}
}

// Ensure creates bucket when it is missing and (re)applies the website
// configuration. It is safe to call repeatedly.
//
// Failing to check for or create the bucket is fatal. Every later step is
// attempted even if an earlier one failed; failures are returned together as
// a *ProvisioningError.
func (p *Provisioner) Ensure(ctx context.Context, bucket string) error {
	exists, err := p.backend.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}

	if exists {
		fmt.Fprintf(p.out, "Bucket already exists: %s\n", bucket)
	} else {
		fmt.Fprintf(p.out, "Creating bucket: %s (%s)\n", bucket, p.backend.Region())
		if err := p.backend.CreateBucket(ctx, bucket); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		logging.Info("bucket created", "bucket", bucket, "region", p.backend.Region(), "provider", p.backend.Name())
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"public access block", func() error { return p.backend.DisablePublicAccessBlock(ctx, bucket) }},
		{"public read policy", func() error { return p.backend.SetPublicReadPolicy(ctx, bucket) }},
		{"website hosting", func() error { return p.backend.ConfigureWebsite(ctx, bucket, EntryDocument, EntryDocument) }},
		{"versioning", func() error { return p.backend.EnableVersioning(ctx, bucket) }},
	}

	var failed []StepError
	for _, step := range steps {
		if ctx.Err() != nil {
			failed = append(failed, StepError{Step: step.name, Err: ctx.Err()})
			continue
		}
		if err := step.run(); err != nil {
			logging.Warn("bucket configuration step failed", "bucket", bucket, "step", step.name, "error", err)
			failed = append(failed, StepError{Step: step.name, Err: err})
			continue
		}
		logging.Debug("bucket configuration step applied", "bucket", bucket, "step", step.name)
	}

	if len(failed) > 0 {
		return &ProvisioningError{Bucket: bucket, Steps: failed}
	}

	fmt.Fprintf(p.out, "✓ Bucket ready: %s\n", bucket)
	return nil
}

// IsPartial reports whether err only signals incomplete configuration.
func IsPartial(err error) bool {
	return errors.Is(err, types.ErrProvisioningPartial)
}
