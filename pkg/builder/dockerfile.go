package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/renameio/v2"
)

// DockerfileName is the build-stage file written by `minfy detect`.
const DockerfileName = "Dockerfile.build"

var buildStageLine = regexp.MustCompile(`(?i)^\s*from\s.*\sas\s+build\b`)

// InjectBuildArgs inserts an ARG/ENV pair for every name directly after the
// first "FROM ... AS build" line, or after the first line when there is no
// named build stage. Names are inserted in the order given.
func InjectBuildArgs(dockerfile string, names []string) string {
	if len(names) == 0 {
		return dockerfile
	}

	lines := strings.SplitAfter(dockerfile, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	insertAt := 1
	for i, line := range lines {
		if buildStageLine.MatchString(line) {
			insertAt = i + 1
			break
		}
	}
	if insertAt > len(lines) {
		insertAt = len(lines)
	}

	var b strings.Builder
	for i, line := range lines[:insertAt] {
		b.WriteString(line)
		if i == insertAt-1 && !strings.HasSuffix(line, "\n") {
			b.WriteString("\n")
		}
	}
	for _, name := range names {
		fmt.Fprintf(&b, "ARG %s\nENV %s=$%s\n", name, name, name)
	}
	for _, line := range lines[insertAt:] {
		b.WriteString(line)
	}
	return b.String()
}

// materializeDockerfile writes appDir/Dockerfile.build with the build args
// injected into a fresh temp directory and returns the directory and file path.
func materializeDockerfile(appDir string, names []string) (string, string, error) {
	src := filepath.Join(appDir, DockerfileName)
	data, err := os.ReadFile(src)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", src, err)
	}

	dir, err := os.MkdirTemp("", "minfy-dockerfile-*")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	dst := filepath.Join(dir, DockerfileName)
	if err := renameio.WriteFile(dst, []byte(InjectBuildArgs(string(data), names)), 0o644); err != nil {
		os.RemoveAll(dir)
		return "", "", fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return dir, dst, nil
}
