package process

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunnerRun(t *testing.T) {
	requireShell(t)
	r := NewExecRunner()

	t.Run("captures output", func(t *testing.T) {
		result, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo hello"}})
		require.NoError(t, err)
		assert.Equal(t, 0, result.ExitCode)
		assert.Equal(t, "hello\n", string(result.Output))
	})

	t.Run("separates stdout from stderr", func(t *testing.T) {
		result, err := r.Run(context.Background(), Command{
			Name: "sh",
			Args: []string{"-c", "echo WARNING: platform mismatch 1>&2; echo c0ffee"},
		})
		require.NoError(t, err)
		assert.Equal(t, "c0ffee\n", string(result.Stdout))
		assert.Contains(t, string(result.Output), "WARNING: platform mismatch")
		assert.Contains(t, string(result.Output), "c0ffee")
	})

	t.Run("reports exit code", func(t *testing.T) {
		result, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo boom; exit 3"}})
		require.Error(t, err)

		var exitErr *ExitError
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, 3, exitErr.ExitCode)
		assert.Equal(t, "boom", exitErr.Output)
		assert.Equal(t, 3, result.ExitCode)
	})

	t.Run("uses working directory and env", func(t *testing.T) {
		dir := t.TempDir()
		result, err := r.Run(context.Background(), Command{
			Name: "sh",
			Args: []string{"-c", "pwd; echo $GREETING"},
			Dir:  dir,
			Env:  []string{"GREETING=hi"},
		})
		require.NoError(t, err)
		assert.Contains(t, string(result.Output), "hi")
	})

	t.Run("missing executable", func(t *testing.T) {
		result, err := r.Run(context.Background(), Command{Name: "minfy-no-such-binary"})
		require.Error(t, err)
		assert.Equal(t, -1, result.ExitCode)
	})
}

func TestExecRunnerStream(t *testing.T) {
	requireShell(t)
	r := NewExecRunner()

	var lines []string
	code, err := r.Stream(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo one; echo two 1>&2; echo three"},
	}, func(line string) { lines = append(lines, line) })

	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.ElementsMatch(t, []string{"one", "two", "three"}, lines)

	code, err = r.Stream(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 2"}}, nil)
	assert.Equal(t, 2, code)
	var exitErr *ExitError
	assert.True(t, errors.As(err, &exitErr))
}

func TestExecRunnerStreamCancelKillsChildren(t *testing.T) {
	requireShell(t)
	r := &ExecRunner{WaitDelay: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Stream(ctx, Command{Name: "sh", Args: []string{"-c", "sleep 30 & echo started; wait"}}, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestFormatCommand(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{name: "empty", parts: nil, want: "<empty command>"},
		{name: "plain", parts: []string{"docker", "rm", "abc"}, want: "docker rm abc"},
		{name: "spaces", parts: []string{"sh", "-c", "npm run build"}, want: `sh -c 'npm run build'`},
		{name: "empty arg", parts: []string{"echo", ""}, want: "echo ''"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCommand(tt.parts))
		})
	}
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/usr/bin", "NODE_ENV=development", "HOME=/root"}
	merged := MergeEnv(base, map[string]string{"NODE_ENV": "production", "API_URL": "https://api"})

	assert.Equal(t, []string{
		"PATH=/usr/bin",
		"HOME=/root",
		"API_URL=https://api",
		"NODE_ENV=production",
	}, merged)
}
