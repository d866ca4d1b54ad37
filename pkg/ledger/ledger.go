// Package ledger tracks which version of a site's entry document is live.
//
// History is the storage backend's native version list of index.html; it is
// never cached and never pruned. The live version is recorded in a marker
// object whose body is a version identifier. Rolling back copies an old
// version onto the head, which appends to history rather than rewriting it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/minfy-dev/minfy/pkg/logging"
	"github.com/minfy-dev/minfy/pkg/storage"
	"github.com/minfy-dev/minfy/pkg/types"
)

const (
	// EntryKey is the object whose versions make up the deployment history.
	EntryKey = "index.html"

	// MarkerKey holds the version identifier of the live deployment.
	MarkerKey = "__minfy_current.txt"

	// SelectionWindow is the number of recent versions offered for interactive rollback.
	SelectionWindow = 5

	markerContentType = "text/plain"
)

// Ledger reads and writes deployment history through a storage backend.
type Ledger struct {
	backend storage.Backend
}

// New creates a ledger backed by backend.
func New(backend storage.Backend) *Ledger {
	return &Ledger{backend: backend}
}

// MarkCurrent records the head version of the entry document as live and
// returns its identifier. Errors wrap types.ErrMarkerWrite.
func (l *Ledger) MarkCurrent(ctx context.Context, bucket string) (string, error) {
	versionID, err := l.backend.HeadVersion(ctx, bucket, EntryKey)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read version of %s in %s: %w", types.ErrMarkerWrite, EntryKey, bucket, err)
	}
	if err := l.writeMarker(ctx, bucket, versionID); err != nil {
		return "", err
	}
	return versionID, nil
}

func (l *Ledger) writeMarker(ctx context.Context, bucket, versionID string) error {
	if err := l.backend.PutObject(ctx, bucket, MarkerKey, strings.NewReader(versionID), markerContentType); err != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrMarkerWrite, bucket, err)
	}
	logging.Debug("version marker written", "bucket", bucket, "version", versionID)
	return nil
}

// Current returns the live version identifier. It returns an error matching
// types.ErrNoSuchBucket when the bucket does not exist and types.ErrNoMarker
// when the bucket exists but has no marker.
func (l *Ledger) Current(ctx context.Context, bucket string) (string, error) {
	data, err := l.backend.GetObject(ctx, bucket, MarkerKey)
	switch {
	case err == nil:
		return strings.TrimSpace(string(data)), nil
	case errors.Is(err, types.ErrNoSuchBucket):
		return "", err
	case errors.Is(err, types.ErrNoSuchKey):
		return "", fmt.Errorf("%w: %s", types.ErrNoMarker, bucket)
	default:
		return "", fmt.Errorf("failed to read version marker of %s: %w", bucket, err)
	}
}

// History returns every version of the entry document, newest first.
func (l *Ledger) History(ctx context.Context, bucket string) ([]storage.Version, error) {
	versions, err := l.backend.ListVersions(ctx, bucket, EntryKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list history of %s: %w", bucket, err)
	}
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].ModifiedAt.After(versions[j].ModifiedAt)
	})
	return versions, nil
}

// Revert makes target the live entry document: its bytes are copied onto the
// head and the marker is pointed at target.
func (l *Ledger) Revert(ctx context.Context, bucket string, target storage.Version) error {
	if err := l.backend.CopyVersion(ctx, bucket, EntryKey, target.ID); err != nil {
		return fmt.Errorf("failed to restore version %s in %s: %w", target.ID, bucket, err)
	}
	return l.writeMarker(ctx, bucket, target.ID)
}

// Ordinal returns the 1-based deployment number of versionID, the oldest
// version being #1, or 0 when versionID is not in history.
func Ordinal(history []storage.Version, versionID string) int {
	for i, v := range history {
		if v.ID == versionID {
			return len(history) - i
		}
	}
	return 0
}
