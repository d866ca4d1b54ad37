// Package builder runs a project's build either on the host or inside a
// container and returns the directory holding the static site.
//
// Strategy selection and the single host-to-container fallback are modeled as
// an explicit state machine:
//
//	SelectStrategy -> HostBuild | ContainerBuild
//	HostBuild --success--> Success
//	HostBuild --failure--> ContainerBuild   (once, only when a container runtime exists)
//	HostBuild --failure--> Failure          (no container runtime)
//	ContainerBuild --success--> Success
//	ContainerBuild --failure--> Failure
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/minfy-dev/minfy/pkg/logging"
	"github.com/minfy-dev/minfy/pkg/process"
	"github.com/minfy-dev/minfy/pkg/project"
	"github.com/minfy-dev/minfy/pkg/types"
)

// Strategy identifies where a build ran.
type Strategy string

const (
	StrategyHost      Strategy = "host"
	StrategyContainer Strategy = "container"
)

const (
	// DefaultHostTool must be on PATH for host builds.
	DefaultHostTool = "npm"

	// DefaultContainerRuntime must be on PATH for container builds.
	DefaultContainerRuntime = "docker"

	// containerStaticDir is where Dockerfile.build leaves the built site.
	containerStaticDir = "/static"
)

type state int

const (
	stateSelectStrategy state = iota
	stateHostBuild
	stateContainerBuild
	stateSuccess
	stateFailure
)

func (s state) String() string {
	switch s {
	case stateSelectStrategy:
		return "SelectStrategy"
	case stateHostBuild:
		return "HostBuild"
	case stateContainerBuild:
		return "ContainerBuild"
	case stateSuccess:
		return "Success"
	case stateFailure:
		return "Failure"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Output is the result of a successful build.
type Output struct {
	// Dir is the absolute path of the built site
	Dir string

	// Strategy that produced Dir
	Strategy Strategy

	// Attempts lists every strategy tried, in order
	Attempts []Strategy

	// Ephemeral is true when Dir is a temp directory owned by the caller
	Ephemeral bool
}

// Cleanup removes Dir when it is an ephemeral container export.
func (o *Output) Cleanup() error {
	if o == nil || !o.Ephemeral {
		return nil
	}
	return os.RemoveAll(o.Dir)
}

// Orchestrator selects a build strategy and runs the build.
type Orchestrator struct {
	runner process.Runner
	out    io.Writer

	// HostTool is looked up on PATH to decide whether host builds are possible
	HostTool string

	// ContainerRuntime is the container CLI used for isolated builds
	ContainerRuntime string

	// Environ returns the base environment for host builds
	Environ func() []string
}

// New creates an orchestrator that runs commands through runner and writes
// build output to out.
func New(runner process.Runner, out io.Writer) *Orchestrator {
	if out == nil {
		out = io.Discard
	}
	return &Orchestrator{
		runner:           runner,
		out:              out,
		HostTool:         DefaultHostTool,
		ContainerRuntime: DefaultContainerRuntime,
		Environ:          os.Environ,
	}
}

func (o *Orchestrator) available(tool string) bool {
	_, err := o.runner.LookPath(tool)
	return err == nil
}

// Build builds the app in appDir according to plan with the given build-time
// variables and returns the directory holding the static site.
func (o *Orchestrator) Build(ctx context.Context, plan *project.Plan, appDir string, vars map[string]string) (*Output, error) {
	vars = buildVariables(plan, vars)
	logging.Debug("build variables", "vars", logging.SanitizeVars(vars))

	var (
		out      *Output
		attempts []Strategy
		buildErr error
	)

	current := stateSelectStrategy
	for current != stateSuccess && current != stateFailure {
		logging.Debug("build state", "state", current.String())

		switch current {
		case stateSelectStrategy:
			current, buildErr = o.selectStrategy(plan)

		case stateHostBuild:
			attempts = append(attempts, StrategyHost)
			out, buildErr = o.hostBuild(ctx, plan, appDir, vars)
			switch {
			case buildErr == nil:
				current = stateSuccess
			case errors.Is(buildErr, types.ErrMissingOutput), ctx.Err() != nil:
				current = stateFailure
			case o.available(o.ContainerRuntime):
				logging.Warn("host build failed, retrying in container", "error", buildErr)
				fmt.Fprintf(o.out, "Host build failed (%v), retrying inside %s …\n", buildErr, o.ContainerRuntime)
				current = stateContainerBuild
			default:
				current = stateFailure
			}

		case stateContainerBuild:
			attempts = append(attempts, StrategyContainer)
			out, buildErr = o.containerBuild(ctx, appDir, vars)
			if buildErr == nil {
				current = stateSuccess
			} else {
				current = stateFailure
			}
		}
	}

	if current == stateFailure {
		return nil, buildErr
	}

	out.Attempts = attempts
	return out, nil
}

// selectStrategy picks the first build strategy.
func (o *Orchestrator) selectStrategy(plan *project.Plan) (state, error) {
	if !requiresIsolation(plan) && o.available(o.HostTool) {
		return stateHostBuild, nil
	}
	if o.available(o.ContainerRuntime) {
		return stateContainerBuild, nil
	}
	if requiresIsolation(plan) {
		return stateFailure, fmt.Errorf("%w: %s is required for %s builds", types.ErrToolingUnavailable, o.ContainerRuntime, plan.Builder)
	}
	return stateFailure, fmt.Errorf("%w: neither %s nor %s is installed", types.ErrToolingUnavailable, o.HostTool, o.ContainerRuntime)
}

// hostBuild runs the build command through sh in appDir.
func (o *Orchestrator) hostBuild(ctx context.Context, plan *project.Plan, appDir string, vars map[string]string) (*Output, error) {
	command := effectiveCommand(plan)
	fmt.Fprintf(o.out, "Building on host: %s\n", command)

	cmd := process.Command{
		Name: "sh",
		Args: []string{"-c", command},
		Dir:  appDir,
		Env:  process.MergeEnv(o.Environ(), vars),
	}
	if _, err := o.runner.Stream(ctx, cmd, o.printLine); err != nil {
		return nil, fmt.Errorf("%w: host build in %s: %v", types.ErrBuildFailed, appDir, err)
	}

	dir, err := filepath.Abs(filepath.Join(appDir, plan.OutputDirectory))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if err := checkOutput(dir); err != nil {
		return nil, err
	}

	return &Output{Dir: dir, Strategy: StrategyHost}, nil
}

// containerBuild builds Dockerfile.build and copies /static out of the image.
func (o *Orchestrator) containerBuild(ctx context.Context, appDir string, vars map[string]string) (*Output, error) {
	names := sortedNames(vars)

	dfDir, dockerfile, err := materializeDockerfile(appDir, names)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrBuildFailed, err)
	}
	defer os.RemoveAll(dfDir)

	tag := "minfy-build-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	fmt.Fprintf(o.out, "Building inside %s (%s) …\n", o.ContainerRuntime, tag)

	args := []string{"build", "-f", dockerfile, "-t", tag}
	for _, name := range names {
		args = append(args, "--build-arg", name+"="+vars[name])
	}
	args = append(args, appDir)

	build := process.Command{Name: o.ContainerRuntime, Args: args}
	logging.Info("container build", "command", logging.SanitizeString(build.String()))
	if _, err := o.runner.Stream(ctx, build, o.printLine); err != nil {
		return nil, fmt.Errorf("%w: %s build: %v", types.ErrBuildFailed, o.ContainerRuntime, err)
	}

	created, err := o.runner.Run(ctx, process.Command{Name: o.ContainerRuntime, Args: []string{"create", tag}})
	if err != nil {
		return nil, fmt.Errorf("%w: %s create: %v", types.ErrBuildFailed, o.ContainerRuntime, err)
	}
	containerID := strings.TrimSpace(string(created.Stdout))
	defer o.removeContainer(containerID)

	dir, err := os.MkdirTemp("", "minfy-static-*")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create output directory: %v", types.ErrBuildFailed, err)
	}

	copyArgs := []string{"cp", containerID + ":" + containerStaticDir + "/.", dir}
	if _, err := o.runner.Run(ctx, process.Command{Name: o.ContainerRuntime, Args: copyArgs}); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %s cp: %v", types.ErrBuildFailed, o.ContainerRuntime, err)
	}

	if err := checkOutput(dir); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	return &Output{Dir: dir, Strategy: StrategyContainer, Ephemeral: true}, nil
}

// removeContainer is best-effort; failures are logged only.
func (o *Orchestrator) removeContainer(id string) {
	if id == "" {
		return
	}
	if _, err := o.runner.Run(context.Background(), process.Command{Name: o.ContainerRuntime, Args: []string{"rm", id}}); err != nil {
		logging.Warn("failed to remove build container", "container", id, "error", err)
	}
}

func (o *Orchestrator) printLine(line string) {
	fmt.Fprintln(o.out, line)
}

func checkOutput(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", types.ErrMissingOutput, dir)
	}
	return nil
}
