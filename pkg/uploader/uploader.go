// Package uploader publishes a scanned build output to a bucket.
package uploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/minfy-dev/minfy/pkg/artifact"
	"github.com/minfy-dev/minfy/pkg/logging"
	"github.com/minfy-dev/minfy/pkg/storage"
)

// DefaultConcurrency is the number of parallel uploads when none is configured.
const DefaultConcurrency = 8

// rootEntryContentType is used for the root copy of a nested entry document.
const rootEntryContentType = "text/html"

// Uploader uploads artifacts through a storage backend with a bounded pool.
type Uploader struct {
	backend     storage.Backend
	progress    io.Writer
	concurrency int
}

// New creates an uploader. Progress is drawn on progress; a nil writer
// disables the progress bar.
func New(backend storage.Backend, progress io.Writer, concurrency int) *Uploader {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Uploader{backend: backend, progress: progress, concurrency: concurrency}
}

// Upload puts every scanned file into bucket under its key and returns the
// number of files uploaded. A nested entry document is uploaded a second time
// as the root index.html; that copy is not counted.
//
// Uploads run in parallel without ordering guarantees. The first failure
// cancels the remaining uploads.
func (u *Uploader) Upload(ctx context.Context, bucket string, scan *artifact.Scan) (int, error) {
	bar := progressbar.NewOptions(len(scan.Files),
		progressbar.OptionSetDescription("Uploading"),
		progressbar.OptionSetWriter(u.progress),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(u.progress)
		}),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	for _, f := range scan.Files {
		g.Go(func() error {
			if err := u.put(gctx, bucket, f.Path, f.Key, f.ContentType); err != nil {
				if gctx.Err() == nil {
					logging.Error("upload failed", "bucket", bucket, "key", f.Key, "error", err)
				}
				return err
			}
			logging.Debug("uploaded", "bucket", bucket, "key", f.Key, "content_type", f.ContentType)
			return bar.Add(1)
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	if scan.NestedEntry() {
		entry := scan.EntryDocument
		logging.Info("publishing nested entry document at root", "bucket", bucket, "source", entry.Key)
		if err := u.put(ctx, bucket, entry.Path, artifact.EntryDocument, rootEntryContentType); err != nil {
			return 0, err
		}
	}

	return len(scan.Files), nil
}

func (u *Uploader) put(ctx context.Context, bucket, path, key, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := u.backend.PutObject(ctx, bucket, key, f, contentType); err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", key, bucket, err)
	}
	return nil
}
