// Package project provides the types handed to the deployment engine by the
// init and detect steps: the project descriptor (.minfy.json) and the build
// plan (build.json). Both files are written by those steps; this package only
// reads and validates them.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DescriptorFile is the project descriptor written by `minfy init`.
	DescriptorFile = ".minfy.json"

	// PlanFile is the build plan written by `minfy detect`.
	PlanFile = "build.json"

	// DefaultEnvironment is used when the descriptor does not name one.
	DefaultEnvironment = "dev"
)

// Environments lists the deployment environments a project can target.
var Environments = []string{"dev", "staging", "prod"}

// Descriptor identifies a deployable app.
// It is immutable for the duration of a command.
//
// Example:
//
//	d := &Descriptor{
//	  RepositoryURL:     "https://github.com/x/demo.git",
//	  AppSubdirectory:   ".",
//	  ActiveEnvironment: "dev",
//	}
type Descriptor struct {
	// Repository the app was cloned from
	RepositoryURL string `json:"repo"`

	// Local checkout of the repository
	LocalPath string `json:"local_path"`

	// App location inside the repository ("." for the repository root)
	AppSubdirectory string `json:"app_subdir"`

	// Environment commands act on (dev, staging, prod)
	ActiveEnvironment string `json:"current_env"`

	// Per-environment settings managed by `minfy config`
	Envs map[string]EnvironmentSettings `json:"envs,omitempty"`
}

// EnvironmentSettings holds the build-time variables configured for one environment.
type EnvironmentSettings struct {
	// Build-time variables (KEY -> value)
	Vars map[string]string `json:"vars,omitempty"`

	// Build command override for this environment - optional
	BuildCommand string `json:"build_cmd,omitempty"`
}

// AppDir returns the absolute directory of the app to build.
func (d *Descriptor) AppDir() string {
	return filepath.Join(d.LocalPath, d.AppSubdirectory)
}

// Variables returns the build-time variables configured for the active environment.
// The returned map is a copy and may be modified by the caller.
func (d *Descriptor) Variables() map[string]string {
	vars := make(map[string]string)
	if settings, ok := d.Envs[d.ActiveEnvironment]; ok {
		for k, v := range settings.Vars {
			vars[k] = v
		}
	}
	return vars
}

// Validate checks if the descriptor has all required fields and valid values.
func (d *Descriptor) Validate() error {
	if d.LocalPath == "" {
		return fmt.Errorf("local_path is required")
	}
	if !isKnownEnvironment(d.ActiveEnvironment) {
		return fmt.Errorf("unknown environment %q (valid: %s)", d.ActiveEnvironment, strings.Join(Environments, ", "))
	}
	return nil
}

func isKnownEnvironment(env string) bool {
	for _, e := range Environments {
		if e == env {
			return true
		}
	}
	return false
}

// BuilderKind identifies the framework a plan was detected for.
type BuilderKind string

const (
	BuilderAngular BuilderKind = "angular"
	BuilderCRA     BuilderKind = "cra"
	BuilderVite    BuilderKind = "vite"
	BuilderNext    BuilderKind = "next"
	BuilderCustom  BuilderKind = "custom"
)

// ParseBuilderKind maps a detected builder name to a BuilderKind.
// Unrecognized and empty names map to BuilderCustom.
func ParseBuilderKind(name string) BuilderKind {
	switch k := BuilderKind(strings.ToLower(strings.TrimSpace(name))); k {
	case BuilderAngular, BuilderCRA, BuilderVite, BuilderNext:
		return k
	default:
		return BuilderCustom
	}
}

// Plan describes how to build the app.
type Plan struct {
	// Framework the plan was detected for
	Builder BuilderKind `json:"builder"`

	// Shell command producing the static site
	BuildCommand string `json:"build_cmd"`

	// Output directory relative to the app root
	OutputDirectory string `json:"output_dir"`

	// Build inside a container even when host tooling is present
	RequiresIsolatedBuild bool `json:"requires_docker"`

	// Build-time variables; filled by the caller before building
	Variables map[string]string `json:"-"`
}

// UnmarshalJSON normalizes the builder field into the closed BuilderKind set.
func (p *Plan) UnmarshalJSON(data []byte) error {
	type rawPlan Plan
	var raw struct {
		rawPlan
		Builder string `json:"builder"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Plan(raw.rawPlan)
	p.Builder = ParseBuilderKind(raw.Builder)
	return nil
}

// Validate checks if the plan has all required fields.
func (p *Plan) Validate() error {
	if p.OutputDirectory == "" {
		return fmt.Errorf("output_dir is required")
	}
	if filepath.IsAbs(p.OutputDirectory) {
		return fmt.Errorf("output_dir must be relative to the app directory: %s", p.OutputDirectory)
	}
	if p.BuildCommand == "" && p.Builder != BuilderNext {
		return fmt.Errorf("build_cmd is required")
	}
	return nil
}

// LoadDescriptor reads a project descriptor from disk, parses it, and validates it.
// A missing current_env defaults to "dev".
func LoadDescriptor(filename string) (*Descriptor, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse project file: %w", err)
	}
	if d.ActiveEnvironment == "" {
		d.ActiveEnvironment = DefaultEnvironment
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project file: %w", err)
	}

	return &d, nil
}

// LoadPlan reads a build plan from disk, parses it, and validates it.
//
// Example:
//
//	plan, err := project.LoadPlan("build.json")
//	if err != nil {
//	  log.Fatal(err)
//	}
func LoadPlan(filename string) (*Plan, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read build plan: %w", err)
	}

	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse build plan: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid build plan: %w", err)
	}

	return &p, nil
}
