// Package process runs external commands for the build orchestrator.
// Builds only depend on the Runner interface, so tests can script exit codes
// without spawning processes.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
)

// Command describes a process to run.
type Command struct {
	// Name is the executable
	Name string

	// Args are passed to the executable as-is
	Args []string

	// Dir is the working directory; empty means the current directory
	Dir string

	// Env is the full environment ("KEY=value"); nil inherits the parent's
	Env []string
}

// String formats the command for logging, quoting arguments where needed.
func (c Command) String() string {
	return FormatCommand(append([]string{c.Name}, c.Args...))
}

// Result contains the result of a captured command execution.
type Result struct {
	// Output is the combined stdout and stderr
	Output []byte

	// Stdout is what the command wrote to stdout alone
	Stdout []byte

	// ExitCode is the exit code of the command, -1 if it never started
	ExitCode int

	// Duration is how long the command took to execute
	Duration time.Duration
}

// Runner is the process execution collaborator.
type Runner interface {
	// Run executes the command and captures its output, both combined and
	// stdout alone.
	// A non-zero exit is reported as an error alongside the Result.
	Run(ctx context.Context, cmd Command) (*Result, error)

	// Stream executes the command, calling onLine for every line written to
	// stdout or stderr, and returns its exit code.
	Stream(ctx context.Context, cmd Command, onLine func(line string)) (int, error)

	// LookPath reports the full path of an executable, or an error if it is not installed.
	LookPath(name string) (string, error)
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("command failed (exit %d): %s", e.ExitCode, e.Command)
	}
	return fmt.Sprintf("command failed (exit %d): %s\nOutput: %s", e.ExitCode, e.Command, e.Output)
}

// DefaultWaitDelay bounds how long a cancelled command may keep its output
// pipes open after it was killed.
const DefaultWaitDelay = 5 * time.Second

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// WaitDelay overrides DefaultWaitDelay when positive
	WaitDelay time.Duration
}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) command(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.WaitDelay = DefaultWaitDelay
	if r.WaitDelay > 0 {
		cmd.WaitDelay = r.WaitDelay
	}
	killGroupOnCancel(cmd)
	return cmd
}

// lockedBuffer serialises writes from the stdout and stderr copiers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	cmd := r.command(ctx, c)

	var stdout bytes.Buffer
	combined := &lockedBuffer{}
	cmd.Stdout = io.MultiWriter(&stdout, combined)
	cmd.Stderr = combined

	start := time.Now()
	err := cmd.Run()
	output := combined.buf.Bytes()
	result := &Result{
		Output:   output,
		Stdout:   stdout.Bytes(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return result, &ExitError{
				Command:  c.String(),
				ExitCode: result.ExitCode,
				Output:   strings.TrimSpace(string(output)),
			}
		}
		return result, fmt.Errorf("failed to run %s: %w", c.String(), err)
	}

	return result, nil
}

// Stream implements Runner.
func (r *ExecRunner) Stream(ctx context.Context, c Command, onLine func(line string)) (int, error) {
	cmd := r.command(ctx, c)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return -1, fmt.Errorf("failed to start %s: %w", c.String(), err)
	}

	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		done <- err
	}()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	// Keep the writer unblocked if the scanner stopped early
	_, _ = io.Copy(io.Discard, pr)

	err := <-done
	exitCode := cmd.ProcessState.ExitCode()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitCode, &ExitError{Command: c.String(), ExitCode: exitCode}
		}
		return exitCode, fmt.Errorf("failed to run %s: %w", c.String(), err)
	}

	return exitCode, nil
}

// LookPath implements Runner.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// FormatCommand formats command parts into a readable string for logging.
// Example: ["sh", "-c", "npm run build"] -> "sh -c 'npm run build'"
func FormatCommand(parts []string) string {
	if len(parts) == 0 {
		return "<empty command>"
	}

	quoted := make([]string, len(parts))
	for i, part := range parts {
		switch {
		case part == "":
			quoted[i] = "''"
		case strings.ContainsAny(part, " \t\n\"'$&|;<>()*?"):
			quoted[i] = shellquote.Join(part)
		default:
			quoted[i] = part
		}
	}

	return strings.Join(quoted, " ")
}

// MergeEnv returns base with overrides applied. Keys in overrides replace
// matching keys in base and are appended in key order.
func MergeEnv(base []string, overrides map[string]string) []string {
	merged := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		merged = append(merged, kv)
	}
	for _, key := range sortedKeys(overrides) {
		merged = append(merged, key+"="+overrides[key])
	}
	return merged
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
