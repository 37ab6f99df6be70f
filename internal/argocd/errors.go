package argocd

import (
	"fmt"
	"strings"
)

// CLIError indicates a failed invocation of the external argocd CLI. The
// command line it carries is already masked; secret material never reaches
// diagnostics.
type CLIError struct {
	// Command is the masked command line that failed.
	Command string
	// ExitCode is the subprocess exit code.
	ExitCode int
	// Stderr is the subprocess diagnostic output.
	Stderr string
	// Err is the underlying spawn error, when the process never ran.
	Err error
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("argocd CLI error: %s: %v", e.Command, e.Err)
	}
	msg := fmt.Sprintf("argocd CLI error: %s: exit code %d", e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Unwrap returns the underlying spawn error, if any.
func (e *CLIError) Unwrap() error {
	return e.Err
}
