package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minfy-dev/minfy/pkg/process"
	"github.com/minfy-dev/minfy/pkg/project"
	"github.com/minfy-dev/minfy/pkg/types"
)

// fakeRunner scripts tool availability and command outcomes.
type fakeRunner struct {
	tools map[string]bool

	// hostExit is the exit code of the host build
	hostExit int
	// hostOutput is created when the host build succeeds
	hostOutput string

	// failContainerStep names a docker subcommand (build, create, cp) that fails
	failContainerStep string

	commands []process.Command
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.tools[name] {
		return "/usr/bin/" + name, nil
	}
	return "", fmt.Errorf("%s: not found", name)
}

func (f *fakeRunner) Stream(_ context.Context, cmd process.Command, onLine func(string)) (int, error) {
	f.commands = append(f.commands, cmd)
	if cmd.Name == "sh" {
		if f.hostExit != 0 {
			return f.hostExit, &process.ExitError{Command: cmd.String(), ExitCode: f.hostExit}
		}
		if f.hostOutput != "" {
			if err := os.MkdirAll(f.hostOutput, 0o755); err != nil {
				return 1, err
			}
		}
		onLine("built")
		return 0, nil
	}
	if f.failContainerStep == cmd.Args[0] {
		return 1, &process.ExitError{Command: cmd.String(), ExitCode: 1}
	}
	return 0, nil
}

func (f *fakeRunner) Run(_ context.Context, cmd process.Command) (*process.Result, error) {
	f.commands = append(f.commands, cmd)
	if f.failContainerStep == cmd.Args[0] {
		return &process.Result{ExitCode: 1}, &process.ExitError{Command: cmd.String(), ExitCode: 1}
	}
	switch cmd.Args[0] {
	case "create":
		return &process.Result{
			Output: []byte("WARNING: The requested image's platform does not match\nc0ffee\n"),
			Stdout: []byte("c0ffee\n"),
		}, nil
	case "cp":
		dst := cmd.Args[2]
		if err := os.WriteFile(filepath.Join(dst, "index.html"), []byte("<html></html>"), 0o644); err != nil {
			return nil, err
		}
	}
	return &process.Result{}, nil
}

func (f *fakeRunner) ran(name, sub string) bool {
	for _, c := range f.commands {
		if c.Name == name && (sub == "" || (len(c.Args) > 0 && c.Args[0] == sub)) {
			return true
		}
	}
	return false
}

func newAppDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dockerfile := "FROM node:20 AS build\nWORKDIR /app\nRUN npm run build\nFROM scratch\nCOPY --from=build /app/dist /static\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, DockerfileName), []byte(dockerfile), 0o644))
	return dir
}

func newOrchestrator(r *fakeRunner) *Orchestrator {
	o := New(r, nil)
	o.Environ = func() []string { return []string{"PATH=/usr/bin", "API_URL=http://old"} }
	return o
}

func TestBuildOnHost(t *testing.T) {
	appDir := newAppDir(t)
	r := &fakeRunner{
		tools:      map[string]bool{"npm": true, "docker": true},
		hostOutput: filepath.Join(appDir, "dist"),
	}
	plan := &project.Plan{Builder: project.BuilderVite, BuildCommand: "npm run build", OutputDirectory: "dist"}

	out, err := newOrchestrator(r).Build(context.Background(), plan, appDir, map[string]string{"API_URL": "https://api"})
	require.NoError(t, err)

	assert.Equal(t, StrategyHost, out.Strategy)
	assert.Equal(t, []Strategy{StrategyHost}, out.Attempts)
	assert.Equal(t, filepath.Join(appDir, "dist"), out.Dir)
	assert.False(t, out.Ephemeral)
	assert.False(t, r.ran("docker", ""))

	host := r.commands[0]
	assert.Equal(t, []string{"-c", "npm run build"}, host.Args)
	assert.Equal(t, appDir, host.Dir)
	assert.Contains(t, host.Env, "API_URL=https://api")
	assert.NotContains(t, host.Env, "API_URL=http://old")
}

func TestBuildFallsBackToContainer(t *testing.T) {
	appDir := newAppDir(t)
	r := &fakeRunner{
		tools:    map[string]bool{"npm": true, "docker": true},
		hostExit: 1,
	}
	plan := &project.Plan{Builder: project.BuilderCRA, BuildCommand: "npm run build", OutputDirectory: "build"}

	out, err := newOrchestrator(r).Build(context.Background(), plan, appDir, nil)
	require.NoError(t, err)
	defer out.Cleanup()

	assert.Equal(t, StrategyContainer, out.Strategy)
	assert.Equal(t, []Strategy{StrategyHost, StrategyContainer}, out.Attempts)
	assert.True(t, out.Ephemeral)
	assert.FileExists(t, filepath.Join(out.Dir, "index.html"))
	assert.True(t, r.ran("docker", "rm"), "transient container must be removed")
}

func TestBuildContainerIDIgnoresStderr(t *testing.T) {
	appDir := newAppDir(t)
	r := &fakeRunner{
		tools:    map[string]bool{"npm": true, "docker": true},
		hostExit: 1,
	}
	plan := &project.Plan{Builder: project.BuilderCRA, BuildCommand: "npm run build", OutputDirectory: "build"}

	out, err := newOrchestrator(r).Build(context.Background(), plan, appDir, nil)
	require.NoError(t, err)
	defer out.Cleanup()

	var copyArgs, removeArgs []string
	for _, c := range r.commands {
		switch {
		case c.Name == "docker" && c.Args[0] == "cp":
			copyArgs = c.Args
		case c.Name == "docker" && c.Args[0] == "rm":
			removeArgs = c.Args
		}
	}
	require.NotEmpty(t, copyArgs)
	require.NotEmpty(t, removeArgs)
	assert.Equal(t, "c0ffee:/static/.", copyArgs[1])
	assert.Equal(t, "c0ffee", removeArgs[len(removeArgs)-1])
}

func TestBuildHostFailureWithoutContainerRuntime(t *testing.T) {
	appDir := newAppDir(t)
	r := &fakeRunner{tools: map[string]bool{"npm": true}, hostExit: 2}
	plan := &project.Plan{Builder: project.BuilderCRA, BuildCommand: "npm run build", OutputDirectory: "build"}

	_, err := newOrchestrator(r).Build(context.Background(), plan, appDir, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrBuildFailed))
	assert.False(t, r.ran("docker", ""))
}

func TestBuildContainerFailureIsTerminal(t *testing.T) {
	for _, step := range []string{"build", "create", "cp"} {
		t.Run(step, func(t *testing.T) {
			appDir := newAppDir(t)
			r := &fakeRunner{
				tools:             map[string]bool{"npm": true, "docker": true},
				hostExit:          1,
				failContainerStep: step,
			}
			plan := &project.Plan{Builder: project.BuilderCRA, BuildCommand: "npm run build", OutputDirectory: "build"}

			_, err := newOrchestrator(r).Build(context.Background(), plan, appDir, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrBuildFailed))

			hostBuilds := 0
			for _, c := range r.commands {
				if c.Name == "sh" {
					hostBuilds++
				}
			}
			assert.Equal(t, 1, hostBuilds, "host build must not be retried")
		})
	}
}

func TestBuildToolingUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		tools map[string]bool
		plan  *project.Plan
	}{
		{
			name:  "nothing installed",
			tools: map[string]bool{},
			plan:  &project.Plan{Builder: project.BuilderCRA, BuildCommand: "npm run build", OutputDirectory: "build"},
		},
		{
			name:  "isolated build without docker",
			tools: map[string]bool{"npm": true},
			plan:  &project.Plan{Builder: project.BuilderVite, BuildCommand: "npm run build", OutputDirectory: "dist", RequiresIsolatedBuild: true},
		},
		{
			name:  "next without docker",
			tools: map[string]bool{"npm": true},
			plan:  &project.Plan{Builder: project.BuilderNext, OutputDirectory: "out"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{tools: tt.tools}
			_, err := newOrchestrator(r).Build(context.Background(), tt.plan, t.TempDir(), nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrToolingUnavailable))
			assert.Empty(t, r.commands)
		})
	}
}

func TestBuildMissingOutput(t *testing.T) {
	appDir := newAppDir(t)
	r := &fakeRunner{tools: map[string]bool{"npm": true, "docker": true}}
	plan := &project.Plan{Builder: project.BuilderCRA, BuildCommand: "npm run build", OutputDirectory: "build"}

	_, err := newOrchestrator(r).Build(context.Background(), plan, appDir, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrMissingOutput))
	assert.False(t, r.ran("docker", ""), "missing output is not retried in a container")
}

func TestBuildIsolatedUsesContainerDirectly(t *testing.T) {
	appDir := newAppDir(t)
	r := &fakeRunner{tools: map[string]bool{"npm": true, "docker": true}}
	plan := &project.Plan{Builder: project.BuilderVite, BuildCommand: "npm run build", OutputDirectory: "dist", RequiresIsolatedBuild: true}

	out, err := newOrchestrator(r).Build(context.Background(), plan, appDir, map[string]string{"VITE_B": "2", "VITE_A": "1"})
	require.NoError(t, err)
	defer out.Cleanup()

	assert.Equal(t, []Strategy{StrategyContainer}, out.Attempts)
	assert.False(t, r.ran("sh", ""))

	build := r.commands[0]
	assert.Equal(t, "build", build.Args[0])
	joined := strings.Join(build.Args, " ")
	assert.Contains(t, joined, "--build-arg VITE_A=1 --build-arg VITE_B=2")
	assert.True(t, strings.HasPrefix(build.Args[4], "minfy-build-"))
	assert.Equal(t, appDir, build.Args[len(build.Args)-1])
}

func TestBuildAngularInjectsLegacyOpenSSL(t *testing.T) {
	appDir := newAppDir(t)
	plan := &project.Plan{Builder: project.BuilderAngular, BuildCommand: "npm run build", OutputDirectory: "dist/demo"}

	t.Run("injected when unset", func(t *testing.T) {
		r := &fakeRunner{tools: map[string]bool{"npm": true}, hostOutput: filepath.Join(appDir, "dist/demo")}
		_, err := newOrchestrator(r).Build(context.Background(), plan, appDir, nil)
		require.NoError(t, err)
		assert.Contains(t, r.commands[0].Env, "NODE_OPTIONS=--openssl-legacy-provider")
	})

	t.Run("caller value wins", func(t *testing.T) {
		r := &fakeRunner{tools: map[string]bool{"npm": true}, hostOutput: filepath.Join(appDir, "dist/demo")}
		_, err := newOrchestrator(r).Build(context.Background(), plan, appDir, map[string]string{"NODE_OPTIONS": "--max-old-space-size=4096"})
		require.NoError(t, err)
		assert.Contains(t, r.commands[0].Env, "NODE_OPTIONS=--max-old-space-size=4096")
		assert.NotContains(t, r.commands[0].Env, "NODE_OPTIONS=--openssl-legacy-provider")
	})
}

func TestOutputCleanup(t *testing.T) {
	dir := t.TempDir()
	kept := &Output{Dir: dir}
	require.NoError(t, kept.Cleanup())
	assert.DirExists(t, dir)

	gone := &Output{Dir: dir, Ephemeral: true}
	require.NoError(t, gone.Cleanup())
	assert.NoDirExists(t, dir)
}
