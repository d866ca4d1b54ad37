// Package artifact enumerates the files of a build output directory and
// locates its entry document.
package artifact

import (
	"fmt"
	"io/fs"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/minfy-dev/minfy/pkg/types"
)

const (
	// EntryDocument is the file a static website serves for its root.
	EntryDocument = "index.html"

	// DefaultContentType is used for extensions with no known MIME type.
	DefaultContentType = "application/octet-stream"
)

// File is one artifact to upload.
type File struct {
	// Absolute path on disk
	Path string

	// Object key, POSIX-style and relative to the output root
	Key string

	// Content type derived from the extension
	ContentType string
}

// Scan is the result of scanning a build output directory.
type Scan struct {
	// Root directory that was scanned
	Root string

	// Files in lexical walk order
	Files []File

	// Entry document closest to the root
	EntryDocument File
}

// NestedEntry reports whether the entry document is below the root and must
// also be published under the root key.
func (s *Scan) NestedEntry() bool {
	return s.EntryDocument.Key != EntryDocument
}

// ScanDir walks root and returns every regular file. Among the files named
// index.html the one with the fewest path segments is the entry document;
// ties go to the first in lexical order.
func ScanDir(root string) (*Scan, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	scan := &Scan{Root: abs}
	entryDepth := -1

	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		file := File{Path: p, Key: key, ContentType: ContentType(key)}
		scan.Files = append(scan.Files, file)

		if path.Base(key) == EntryDocument {
			depth := strings.Count(key, "/")
			if entryDepth < 0 || depth < entryDepth {
				scan.EntryDocument = file
				entryDepth = depth
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", abs, err)
	}

	if entryDepth < 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrNoEntryDocument, abs)
	}
	return scan, nil
}

// ContentType returns the MIME type for name based on its extension.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return DefaultContentType
}
