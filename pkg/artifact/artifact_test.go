package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minfy-dev/minfy/pkg/types"
)

func writeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0o644))
	}
	return root
}

func TestScanDirEntryDocument(t *testing.T) {
	tests := []struct {
		name       string
		files      []string
		wantEntry  string
		wantNested bool
	}{
		{
			name:      "root wins over nested",
			files:     []string{"a/index.html", "index.html"},
			wantEntry: "index.html",
		},
		{
			name:       "only deeply nested",
			files:      []string{"a/b/index.html", "a/b/main.js"},
			wantEntry:  "a/b/index.html",
			wantNested: true,
		},
		{
			name:       "shallowest nested",
			files:      []string{"x/y/index.html", "z/index.html"},
			wantEntry:  "z/index.html",
			wantNested: true,
		},
		{
			name:       "tie goes to lexical order",
			files:      []string{"b/index.html", "a/index.html"},
			wantEntry:  "a/index.html",
			wantNested: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scan, err := ScanDir(writeTree(t, tt.files...))
			require.NoError(t, err)
			assert.Equal(t, tt.wantEntry, scan.EntryDocument.Key)
			assert.Equal(t, tt.wantNested, scan.NestedEntry())
		})
	}
}

func TestScanDirFiles(t *testing.T) {
	root := writeTree(t, "index.html", "assets/app.js", "assets/style.css", "favicon.ico", "data.unknownext")

	scan, err := ScanDir(root)
	require.NoError(t, err)

	keys := make([]string, len(scan.Files))
	for i, f := range scan.Files {
		keys[i] = f.Key
		assert.True(t, filepath.IsAbs(f.Path))
		assert.False(t, strings.Contains(f.Key, `\`))
	}
	assert.Equal(t, []string{"assets/app.js", "assets/style.css", "data.unknownext", "favicon.ico", "index.html"}, keys)
	assert.Equal(t, DefaultContentType, scan.Files[2].ContentType)
}

func TestScanDirNoEntryDocument(t *testing.T) {
	_, err := ScanDir(writeTree(t, "main.js", "index.htm"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNoEntryDocument))
}

func TestScanDirMissingRoot(t *testing.T) {
	_, err := ScanDir(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, types.ErrNoEntryDocument))
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"index.html", "text/html; charset=utf-8"},
		{"assets/app.css", "text/css; charset=utf-8"},
		{"logo.png", "image/png"},
		{"README", DefaultContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentType(tt.name))
		})
	}
}
