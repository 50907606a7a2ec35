package generator

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/teranos/protoreg/descriptor"
	"github.com/teranos/protoreg/errors"
	"github.com/teranos/protoreg/logger"
	"github.com/teranos/protoreg/platform"
	"github.com/teranos/protoreg/runner"
)

// DefaultExecutable is the pub package launcher name of the Dart generator.
const DefaultExecutable = "dart_code_gen"

// Options tune an Invoker. The zero value matches the plain generator
// contract: no timeout, generator writes the destination directly.
type Options struct {
	// Executable is the tool name handed to the PathResolver
	Executable string
	// ExtraArgs are appended after the required flags, shell-quoted
	ExtraArgs string
	// Timeout bounds a single generator run; zero means none
	Timeout time.Duration
	// AtomicWrite has the generator write a temporary sibling that is
	// renamed over the destination only after a successful exit
	AtomicWrite bool
}

// Command is a fully resolved generator invocation.
type Command struct {
	Path string
	Args []string
}

// Argv returns Path followed by Args.
func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

// String returns the command line, shell-quoted.
func (c Command) String() string {
	return shellquote.Join(c.Argv()...)
}

// Invoker runs the generator for a descriptor set and target.
type Invoker struct {
	executable string
	extraArgs  []string
	opts       Options
	runner     runner.CommandRunner
	stat       func(string) (os.FileInfo, error)
	log        *zap.SugaredLogger
}

// NewInvoker resolves the generator path once. A missing executable is only
// logged as a warning here; Invoke turns it into an ExecutableNotFoundError.
func NewInvoker(resolver platform.PathResolver, cmdRunner runner.CommandRunner, opts Options) (*Invoker, error) {
	if opts.Executable == "" {
		opts.Executable = DefaultExecutable
	}
	extra, err := shellquote.Split(opts.ExtraArgs)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid generator.extra_args %q", opts.ExtraArgs)
	}

	inv := &Invoker{
		executable: resolver.Resolve(opts.Executable),
		extraArgs:  extra,
		opts:       opts,
		runner:     cmdRunner,
		stat:       os.Stat,
		log:        logger.ComponentLogger("generator"),
	}

	if !inv.Available() {
		inv.log.Warnw("Cannot locate generator executable",
			logger.FieldExecutable, inv.executable)
	}
	return inv, nil
}

// Executable returns the resolved generator path.
func (i *Invoker) Executable() string {
	return i.executable
}

// Available reports whether the generator executable exists.
func (i *Invoker) Available() bool {
	info, err := i.stat(i.executable)
	return err == nil && !info.IsDir()
}

// Command builds the generator command for set and target.
func (i *Invoker) Command(set descriptor.Set, target Target) Command {
	return i.command(set, target, target.Destination())
}

func (i *Invoker) command(set descriptor.Set, target Target, destination string) Command {
	args := []string{
		"--descriptor", set.Path,
		"--destination", destination,
		"--standard-types", target.StandardTypes,
		"--import-prefix", target.ImportPrefix,
	}
	args = append(args, i.extraArgs...)
	return Command{Path: i.executable, Args: args}
}

// Invoke runs the generator and waits for it to exit. It never reads the
// previous output; a successful run fully replaces it.
func (i *Invoker) Invoke(ctx context.Context, set descriptor.Set, target Target) error {
	if err := target.Validate(); err != nil {
		return err
	}
	if !i.Available() {
		return errors.NewExecutableNotFound(i.executable)
	}

	if err := os.MkdirAll(target.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create target directory %s", target.Dir)
	}

	destination := target.Destination()
	if i.opts.AtomicWrite {
		tmp, err := os.CreateTemp(target.Dir, "."+OutputBase+"-*."+target.Extension)
		if err != nil {
			return errors.Wrap(err, "failed to create temporary output")
		}
		tmp.Close()
		destination = tmp.Name()
		defer os.Remove(destination)
	}

	if i.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.opts.Timeout)
		defer cancel()
	}

	cmd := i.command(set, target, destination)
	log := logger.LoggerFromContext(ctx)
	log.Debugw("Running generator", logger.FieldCommand, cmd.String())

	start := time.Now()
	res, err := i.runner.Run(ctx, cmd.Path, cmd.Args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && i.opts.Timeout > 0 {
			return errors.WithHint(
				errors.Wrapf(err, "generator timed out after %s", i.opts.Timeout),
				"raise generator.timeout_seconds or set it to 0 to disable",
			)
		}
		return errors.Wrap(err, "generator did not complete")
	}

	log.Debugw("Generator exited",
		logger.FieldExitCode, res.ExitCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	if len(res.Stdout) > 0 {
		log.Debugw("Generator output", "stdout", string(res.Stdout))
	}

	if res.ExitCode != 0 {
		return errors.NewGenerationFailed(res.ExitCode, string(res.Stderr))
	}

	if i.opts.AtomicWrite {
		mode := OutputFileMode
		if info, err := os.Stat(target.Destination()); err == nil {
			mode = info.Mode().Perm()
		}
		// CreateTemp makes the file owner-only
		if err := os.Chmod(destination, mode); err != nil {
			return errors.Wrapf(err, "failed to set mode on generated registry %s", destination)
		}
		if err := os.Rename(destination, target.Destination()); err != nil {
			return errors.Wrapf(err, "failed to move generated registry into %s", filepath.Dir(target.Destination()))
		}
	}
	return nil
}
