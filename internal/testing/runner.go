package testing

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/teranos/protoreg/runner"
)

// Call records one FakeRunner invocation.
type Call struct {
	Name string
	Args []string
}

// Flag returns the value following flag in Args, or "".
func (c Call) Flag(flag string) string {
	for i := 0; i+1 < len(c.Args); i++ {
		if c.Args[i] == flag {
			return c.Args[i+1]
		}
	}
	return ""
}

// FakeRunner is a runner.CommandRunner that records calls and delegates to
// Handler. With no Handler every call succeeds without output.
type FakeRunner struct {
	Handler func(call Call) (*runner.Result, error)

	mu    sync.Mutex
	calls []Call
}

// Run implements runner.CommandRunner.
func (f *FakeRunner) Run(_ context.Context, name string, args ...string) (*runner.Result, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.Handler == nil {
		return &runner.Result{}, nil
	}
	return f.Handler(call)
}

// Calls returns a copy of the recorded calls.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// WriteDestination returns a handler that behaves like a successful
// generator: it writes content to the --destination argument.
func WriteDestination(content string) func(Call) (*runner.Result, error) {
	return func(call Call) (*runner.Result, error) {
		dest := call.Flag("--destination")
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(dest, []byte(content), 0o644); err != nil {
			return nil, err
		}
		return &runner.Result{}, nil
	}
}

// Fail returns a handler that exits with code and stderr.
func Fail(code int, stderr string) func(Call) (*runner.Result, error) {
	return func(Call) (*runner.Result, error) {
		return &runner.Result{ExitCode: code, Stderr: []byte(stderr)}, nil
	}
}
