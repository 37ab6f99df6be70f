package argocd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// Result holds the outcome of one subprocess invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner executes external commands. It exists so tests can stub
// the argocd binary without spawning processes.
type CommandRunner interface {
	// LookPath finds the executable in PATH.
	LookPath(file string) (string, error)
	// Run executes the command and captures its output. A non-zero exit
	// code is reported through Result, not through the error; the error is
	// reserved for spawn failures.
	Run(ctx context.Context, name string, args []string, stdin io.Reader) (Result, error)
}

// realCommandRunner is the real implementation using os/exec.
type realCommandRunner struct{}

// NewCommandRunner creates a command runner backed by os/exec.
func NewCommandRunner() CommandRunner {
	return &realCommandRunner{}
}

func (r *realCommandRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (r *realCommandRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) (Result, error) {
	// #nosec G204 - name is resolved via LookPath from a validated binary setting
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()
	if stdin != nil {
		cmd.Stdin = stdin
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		res.ExitCode = 1
		return res, err
	}

	return res, nil
}
