// Package gcp implements storage.Backend on Google Cloud Storage website hosting.
// Object generations play the role of version identifiers.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"cloud.google.com/go/iam"
	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	storagepkg "github.com/minfy-dev/minfy/pkg/storage"
	"github.com/minfy-dev/minfy/pkg/types"
)

const (
	// allUsers is the IAM member for anonymous access
	allUsers = "allUsers"

	// objectViewerRole grants read access to objects
	objectViewerRole iam.RoleName = "roles/storage.objectViewer"
)

// Config selects the project and credentials for the GCS backend.
type Config struct {
	// ProjectID owns newly created buckets
	ProjectID string

	// Region (bucket location)
	Region string

	// Path to a service account key file - optional
	CredentialsFile string

	// Service account key JSON content - optional, takes precedence over CredentialsFile
	CredentialsJSON string
}

// Backend implements storage.Backend for Cloud Storage.
type Backend struct {
	client    *storage.Client
	projectID string
	region    string
}

var _ storagepkg.Backend = (*Backend)(nil)

// New creates a GCS backend. Without explicit credentials the default
// application credentials are used.
func New(ctx context.Context, cfg *Config) (*Backend, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("gcp project_id is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	return &Backend{client: client, projectID: cfg.ProjectID, region: cfg.Region}, nil
}

// Close releases the underlying client.
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) Name() string   { return "gcp" }
func (b *Backend) Region() string { return b.region }

// WebsiteURL returns the public URL of bucket's entry document.
func (b *Backend) WebsiteURL(bucket string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/index.html", bucket)
}

func (b *Backend) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := b.client.Bucket(bucket).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrBucketNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to get bucket %s: %w", bucket, err)
}

func (b *Backend) CreateBucket(ctx context.Context, bucket string) error {
	attrs := &storage.BucketAttrs{Location: b.region}
	if err := b.client.Bucket(bucket).Create(ctx, b.projectID, attrs); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

func (b *Backend) update(ctx context.Context, bucket, what string, attrs storage.BucketAttrsToUpdate) error {
	if _, err := b.client.Bucket(bucket).Update(ctx, attrs); err != nil {
		return fmt.Errorf("failed to %s on %s: %w", what, bucket, translate(err, bucket, ""))
	}
	return nil
}

// DisablePublicAccessBlock lifts public access prevention and switches the
// bucket to uniform access so the IAM policy alone governs reads.
func (b *Backend) DisablePublicAccessBlock(ctx context.Context, bucket string) error {
	return b.update(ctx, bucket, "disable public access prevention", storage.BucketAttrsToUpdate{
		PublicAccessPrevention:   storage.PublicAccessPreventionInherited,
		UniformBucketLevelAccess: &storage.UniformBucketLevelAccess{Enabled: true},
	})
}

func (b *Backend) SetPublicReadPolicy(ctx context.Context, bucket string) error {
	handle := b.client.Bucket(bucket).IAM()
	policy, err := handle.Policy(ctx)
	if err != nil {
		return fmt.Errorf("failed to get IAM policy of %s: %w", bucket, translate(err, bucket, ""))
	}
	if policy.HasRole(allUsers, objectViewerRole) {
		return nil
	}
	policy.Add(allUsers, objectViewerRole)
	if err := handle.SetPolicy(ctx, policy); err != nil {
		return fmt.Errorf("failed to set IAM policy of %s: %w", bucket, translate(err, bucket, ""))
	}
	return nil
}

func (b *Backend) ConfigureWebsite(ctx context.Context, bucket, indexDocument, errorDocument string) error {
	return b.update(ctx, bucket, "configure website", storage.BucketAttrsToUpdate{
		Website: &storage.BucketWebsite{MainPageSuffix: indexDocument, NotFoundPage: errorDocument},
	})
}

func (b *Backend) EnableVersioning(ctx context.Context, bucket string) error {
	return b.update(ctx, bucket, "enable versioning", storage.BucketAttrsToUpdate{
		VersioningEnabled: true,
	})
}

func (b *Backend) PutObject(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	w := b.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload gs://%s/%s: %w", bucket, key, translate(err, bucket, key))
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload gs://%s/%s: %w", bucket, key, translate(err, bucket, key))
	}
	return nil
}

func (b *Backend) HeadVersion(ctx context.Context, bucket, key string) (string, error) {
	attrs, err := b.client.Bucket(bucket).Object(key).Attrs(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gs://%s/%s: %w", bucket, key, resolveMissing(ctx, err, bucket, key, b.BucketExists))
	}
	return strconv.FormatInt(attrs.Generation, 10), nil
}

func (b *Backend) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	r, err := b.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, key, resolveMissing(ctx, err, bucket, key, b.BucketExists))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (b *Backend) CopyVersion(ctx context.Context, bucket, key, versionID string) error {
	generation, err := strconv.ParseInt(versionID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid generation %q for gs://%s/%s", types.ErrNoSuchKey, versionID, bucket, key)
	}

	obj := b.client.Bucket(bucket).Object(key)
	if _, err := obj.CopierFrom(obj.Generation(generation)).Run(ctx); err != nil {
		return fmt.Errorf("failed to copy gs://%s/%s#%s: %w", bucket, key, versionID, translate(err, bucket, key))
	}
	return nil
}

func (b *Backend) ListVersions(ctx context.Context, bucket, key string) ([]storagepkg.Version, error) {
	var versions []storagepkg.Version

	it := b.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: key, Versions: true})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list versions of gs://%s/%s: %w", bucket, key, translate(err, bucket, key))
		}
		if attrs.Name != key {
			continue
		}
		versions = append(versions, storagepkg.Version{
			ID:         strconv.FormatInt(attrs.Generation, 10),
			ModifiedAt: attrs.Created,
			IsLatest:   attrs.Deleted.IsZero(),
		})
	}

	return versions, nil
}

func (b *Backend) DeleteAllVersions(ctx context.Context, bucket string) (int, error) {
	deleted := 0
	bkt := b.client.Bucket(bucket)

	it := bkt.Objects(ctx, &storage.Query{Versions: true})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to list objects in %s: %w", bucket, translate(err, bucket, ""))
		}
		if err := bkt.Object(attrs.Name).Generation(attrs.Generation).Delete(ctx); err != nil {
			return deleted, fmt.Errorf("failed to delete gs://%s/%s#%d: %w", bucket, attrs.Name, attrs.Generation, err)
		}
		deleted++
	}

	return deleted, nil
}

func (b *Backend) DeleteBucket(ctx context.Context, bucket string) error {
	if err := b.client.Bucket(bucket).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete bucket %s: %w", bucket, translate(err, bucket, ""))
	}
	return nil
}

// translate maps Cloud Storage errors onto the shared sentinel errors.
func translate(err error, bucket, key string) error {
	switch {
	case errors.Is(err, storage.ErrBucketNotExist):
		return fmt.Errorf("%w: %s: %v", types.ErrNoSuchBucket, bucket, err)
	case errors.Is(err, storage.ErrObjectNotExist):
		return fmt.Errorf("%w: %s/%s: %v", types.ErrNoSuchKey, bucket, key, err)
	default:
		return err
	}
}

// resolveMissing tells a missing bucket apart from a missing object. Object
// reads report ErrObjectNotExist for both, so the bucket is checked directly.
func resolveMissing(ctx context.Context, err error, bucket, key string, bucketExists func(context.Context, string) (bool, error)) error {
	if !errors.Is(err, storage.ErrObjectNotExist) {
		return translate(err, bucket, key)
	}
	exists, checkErr := bucketExists(ctx, bucket)
	if checkErr == nil && !exists {
		return fmt.Errorf("%w: %s: %v", types.ErrNoSuchBucket, bucket, err)
	}
	return translate(err, bucket, key)
}
