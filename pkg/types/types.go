// Package types provides shared types and error values used across minfy packages.
package types

import (
	"errors"
	"time"
)

// Error taxonomy of the deployment engine. Callers match these with errors.Is;
// every returned error wraps one of them together with the bucket or command
// that failed.
var (
	// ErrToolingUnavailable means neither a host build tool nor a container
	// runtime could be found. Fatal, never retried.
	ErrToolingUnavailable = errors.New("no usable build tooling (npm or docker) found")

	// ErrBuildFailed is returned when the last build strategy attempted failed.
	ErrBuildFailed = errors.New("build failed")

	// ErrMissingOutput means the build finished but its output directory does not exist.
	ErrMissingOutput = errors.New("build output directory is missing")

	// ErrNoEntryDocument means the build output contains no index.html.
	ErrNoEntryDocument = errors.New("no index.html found in build output")

	// ErrProvisioningPartial marks a bucket that exists but is missing some configuration.
	ErrProvisioningPartial = errors.New("bucket provisioning incomplete")

	// ErrMarkerWrite means the current-version marker could not be updated.
	ErrMarkerWrite = errors.New("unable to write version marker")

	// ErrInsufficientHistory is returned when fewer than two versions exist.
	ErrInsufficientHistory = errors.New("not enough versions to roll back")

	// ErrNoSuchBucket means the project's bucket has never been created.
	ErrNoSuchBucket = errors.New("bucket does not exist")

	// ErrNoSuchKey means the requested object or object version does not exist.
	ErrNoSuchKey = errors.New("object does not exist")

	// ErrNoMarker means the bucket exists but was deployed without a version marker.
	ErrNoMarker = errors.New("no deploy marker found")
)

// DeployResult contains information about a successful deployment.
// This is returned by Engine.Deploy once the artifacts are live.
type DeployResult struct {
	// Bucket the site was published to
	Bucket string

	// Public website URL
	URL string

	// Number of files uploaded from the build output
	FilesUploaded int

	// Version identifier of the entry document now live; empty when the
	// marker could not be written
	VersionID string

	// Build strategy that produced the artifacts ("host" or "container")
	Strategy string

	// Warnings collected along the way (provisioning, marker write)
	Warnings []string
}

// DeployStatus contains the current state of a deployed site.
// This is returned by Engine.Status.
type DeployStatus struct {
	// Bucket backing the site
	Bucket string

	// Public website URL
	URL string

	// Version identifier stored in the marker
	VersionID string

	// 1-based ordinal of the live version, oldest deployment being #1.
	// Zero when the marker points at a version no longer in history.
	Ordinal int

	// Total number of versions of the entry document
	TotalVersions int

	// Time the live version was uploaded
	DeployedAt time.Time
}

// RollbackResult contains information about a completed rollback.
type RollbackResult struct {
	// Bucket that was rolled back
	Bucket string

	// Public website URL
	URL string

	// Version identifier now recorded as live
	VersionID string

	// Upload time of the version that was restored
	RestoredFrom time.Time
}

// CleanupResult contains information about a removed site.
type CleanupResult struct {
	// Bucket that was deleted
	Bucket string

	// Number of object versions deleted before the bucket
	VersionsDeleted int
}
