package store

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Env is appended to the inherited environment.
	Env []string
}

// Run executes name with args. On failure the returned *CommandError holds
// the command's stderr.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), r.Env...)
	output, err := cmd.Output()
	if err != nil {
		diag := ""
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			diag = strings.TrimSpace(string(exitErr.Stderr))
		}
		return output, &CommandError{Command: name, Args: args, Output: diag, Err: err}
	}
	return output, nil
}
