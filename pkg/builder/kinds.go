package builder

import (
	"sort"

	"github.com/minfy-dev/minfy/pkg/project"
)

const (
	nodeOptionsVar      = "NODE_OPTIONS"
	legacyOpenSSLOption = "--openssl-legacy-provider"
	nextBuildCommand    = "npm ci --legacy-peer-deps && npx next build"
)

// kindTraits holds the per-framework build adjustments.
type kindTraits struct {
	// forceContainer builds in a container even when the plan allows the host
	forceContainer bool

	// legacyOpenSSL injects NODE_OPTIONS=--openssl-legacy-provider
	legacyOpenSSL bool

	// command replaces the plan's build command when set
	command string
}

func traitsFor(kind project.BuilderKind) kindTraits {
	switch kind {
	case project.BuilderAngular:
		return kindTraits{legacyOpenSSL: true}
	case project.BuilderNext:
		return kindTraits{forceContainer: true, command: nextBuildCommand}
	case project.BuilderCRA, project.BuilderVite:
		return kindTraits{}
	case project.BuilderCustom:
		return kindTraits{}
	default:
		return kindTraits{}
	}
}

// effectiveCommand returns the command that will actually run for plan.
func effectiveCommand(plan *project.Plan) string {
	if t := traitsFor(plan.Builder); t.command != "" {
		return t.command
	}
	return plan.BuildCommand
}

// requiresIsolation reports whether plan must be built in a container.
func requiresIsolation(plan *project.Plan) bool {
	return plan.RequiresIsolatedBuild || traitsFor(plan.Builder).forceContainer
}

// buildVariables copies vars and applies framework-specific defaults.
// Values set by the caller always win.
func buildVariables(plan *project.Plan, vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	if traitsFor(plan.Builder).legacyOpenSSL {
		if _, ok := out[nodeOptionsVar]; !ok {
			out[nodeOptionsVar] = legacyOpenSSLOption
		}
	}
	return out
}

func sortedNames(vars map[string]string) []string {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
