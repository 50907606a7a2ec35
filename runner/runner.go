// Package runner executes external commands and captures their output.
package runner

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/teranos/protoreg/errors"
)

// Result is the outcome of a command that ran to completion.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// CommandRunner executes a command and waits for it to exit.
//
// A non-zero exit is reported through Result.ExitCode, not as an error. An
// error means the process could not be started or did not finish (for
// example, ctx was cancelled).
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// DefaultWaitDelay bounds how long Run keeps draining pipes after the process
// has been killed.
const DefaultWaitDelay = 5 * time.Second

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Dir is the working directory; empty means the current one.
	Dir string
	// WaitDelay overrides DefaultWaitDelay when non-zero.
	WaitDelay time.Duration
}

// NewExecRunner returns an ExecRunner rooted at dir.
func NewExecRunner(dir string) *ExecRunner {
	return &ExecRunner{Dir: dir}
}

// Run starts the command and blocks until it exits. The child is always
// waited on, so no zombie survives any return path. On cancellation the whole
// process tree is killed.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	setProcAttr(cmd)
	cmd.Cancel = func() error {
		return killTree(cmd.Process.Pid)
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	err := cmd.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Wrapf(ctxErr, "%s interrupted", name)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &Result{
			ExitCode: exitErr.ExitCode(),
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
		}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to run %s", name)
	}

	return &Result{
		ExitCode: 0,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}, nil
}
