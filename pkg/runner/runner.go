package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Result holds the outcome of a finished command.
type Result struct {
	// ExitCode is -1 when the command was terminated by a signal.
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner runs external commands. A non-zero exit code is reported in the
// Result, not as an error; errors mean the command could not be run at all.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

// Exec runs commands with os/exec.
type Exec struct{}

// New returns a Runner backed by os/exec.
func New() *Exec {
	return &Exec{}
}

// Run executes name with args in dir, capturing stdout and stderr.
func (e *Exec) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return res, fmt.Errorf("running %s: %w", name, err)
	}
}
