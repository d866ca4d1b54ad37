// Package naming derives the storage bucket a project deploys to.
//
// The same function is used by deploy, status, rollback and cleanup so that
// every command agrees on the bucket for a given repository, app and environment.
package naming

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/minfy-dev/minfy/pkg/project"
)

const (
	prefix = "minfy"

	// DefaultAppSlug replaces an app slug that is empty after slugging.
	DefaultAppSlug = "app"

	// DefaultRepoSlug replaces a repository slug that is empty after slugging.
	DefaultRepoSlug = "repo"
)

var (
	invalidChars = regexp.MustCompile(`[^a-z0-9-]`)
	hyphenRuns   = regexp.MustCompile(`-{2,}`)
)

// Resolve returns the bucket identity for a project:
// minfy-<env>-<repoSlug>-<appSlug>.
func Resolve(d *project.Descriptor) string {
	env := d.ActiveEnvironment
	if env == "" {
		env = project.DefaultEnvironment
	}
	return fmt.Sprintf("%s-%s-%s-%s",
		prefix,
		Slug(env, project.DefaultEnvironment),
		Slug(RepoName(d.RepositoryURL), DefaultRepoSlug),
		Slug(d.AppSubdirectory, DefaultAppSlug),
	)
}

// RepoName returns the last path segment of a repository URL without a
// trailing ".git".
func RepoName(repoURL string) string {
	trimmed := strings.TrimRight(repoURL, "/")
	name := trimmed[strings.LastIndexAny(trimmed, "/:")+1:]
	return strings.TrimSuffix(name, ".git")
}

// Slug lowercases s, replaces characters outside [a-z0-9-] with hyphens,
// collapses hyphen runs and trims edge hyphens. fallback is returned when
// nothing is left.
func Slug(s, fallback string) string {
	slug := invalidChars.ReplaceAllString(strings.ToLower(s), "-")
	slug = hyphenRuns.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return fallback
	}
	return slug
}
