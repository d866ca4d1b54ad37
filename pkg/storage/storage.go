// Package storage defines the object-storage operations the deployment engine
// needs: bucket provisioning, versioned object writes and version listing.
//
// Backends translate their SDK errors into types.ErrNoSuchBucket and
// types.ErrNoSuchKey so callers can match them with errors.Is.
package storage

import (
	"context"
	"io"
	"time"
)

// Version is one stored version of an object.
type Version struct {
	// Backend-assigned version identifier
	ID string

	// Time the version was written
	ModifiedAt time.Time

	// Whether this is the current (head) version
	IsLatest bool
}

// Backend is implemented by every storage provider.
//
// Example implementation:
//
//	type S3Backend struct {}
//
//	func (b *S3Backend) Name() string { return "aws" }
//	func (b *S3Backend) PutObject(ctx, bucket, key, body, contentType) error { ... }
type Backend interface {
	// Name returns the provider name (e.g., "aws", "gcp", "memory")
	Name() string

	// Region the backend creates buckets in
	Region() string

	// WebsiteURL returns the public URL a bucket's website is served from.
	WebsiteURL(bucket string) string

	// BucketExists reports whether bucket exists and is reachable.
	BucketExists(ctx context.Context, bucket string) (bool, error)

	// CreateBucket creates bucket in the backend's region.
	CreateBucket(ctx context.Context, bucket string) error

	// DisablePublicAccessBlock turns off every public-access restriction.
	DisablePublicAccessBlock(ctx context.Context, bucket string) error

	// SetPublicReadPolicy grants anonymous read access to every object.
	SetPublicReadPolicy(ctx context.Context, bucket string) error

	// ConfigureWebsite enables static website serving.
	ConfigureWebsite(ctx context.Context, bucket, indexDocument, errorDocument string) error

	// EnableVersioning turns on object versioning.
	EnableVersioning(ctx context.Context, bucket string) error

	// PutObject writes a new version of key.
	PutObject(ctx context.Context, bucket, key string, body io.Reader, contentType string) error

	// HeadVersion returns the version identifier of key's current version.
	HeadVersion(ctx context.Context, bucket, key string) (string, error)

	// GetObject returns the content of key's current version.
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	// CopyVersion copies versionID of key onto key, creating a new head version.
	CopyVersion(ctx context.Context, bucket, key, versionID string) error

	// ListVersions returns every version of exactly key, in backend order.
	ListVersions(ctx context.Context, bucket, key string) ([]Version, error)

	// DeleteAllVersions deletes every version of every object and returns the count.
	DeleteAllVersions(ctx context.Context, bucket string) (int, error)

	// DeleteBucket deletes an empty bucket.
	DeleteBucket(ctx context.Context, bucket string) error
}

// AccountIdentifier is implemented by backends that can report the account
// their credentials belong to.
type AccountIdentifier interface {
	Account(ctx context.Context) (string, error)
}
