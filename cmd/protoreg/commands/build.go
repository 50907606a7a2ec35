package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/teranos/protoreg/am"
	"github.com/teranos/protoreg/descriptor"
	"github.com/teranos/protoreg/errors"
	"github.com/teranos/protoreg/generator"
	"github.com/teranos/protoreg/pipeline"
	"github.com/teranos/protoreg/platform"
	"github.com/teranos/protoreg/runner"
	"github.com/teranos/protoreg/version"
)

// Seams replaced in tests
var (
	detectResolver = platform.Detect
	newRunner      = func(dir string) runner.CommandRunner { return runner.NewExecRunner(dir) }
)

// buildOptions adjust how a pipeline is assembled from config.
type buildOptions struct {
	// force disables up-to-date checks
	force bool
	// outputRoot redirects every stage's target to <outputRoot>/<stage>
	outputRoot string
}

// assembled bundles a pipeline with the pieces commands report on.
type assembled struct {
	pipeline *pipeline.Pipeline
	invoker  *generator.Invoker
	locator  *descriptor.Locator
	targets  map[string]generator.Target
}

// loadConfig loads and validates the active configuration.
func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(
			errors.Wrap(err, "invalid configuration"),
			"run `protoreg am where` to see which file sets each value",
		)
	}
	return cfg, nil
}

func resolverFor(cfg *am.Config) platform.PathResolver {
	if cfg.Generator.Path != "" {
		return platform.Fixed{Path: cfg.Abs(cfg.Generator.Path)}
	}
	return detectResolver()
}

// buildPipeline wires config into locator, invoker and the default stage graph.
func buildPipeline(cfg *am.Config, opts buildOptions) (*assembled, error) {
	inv, err := generator.NewInvoker(resolverFor(cfg), newRunner(cfg.Root), cfg.GeneratorOptions())
	if err != nil {
		return nil, err
	}
	locator := descriptor.NewLocator(cfg.DescriptorPaths())

	mainTarget, err := cfg.Target(descriptor.Main)
	if err != nil {
		return nil, errors.Wrap(err, "targets.main")
	}
	testTarget, err := cfg.Target(descriptor.Test)
	if err != nil {
		return nil, errors.Wrap(err, "targets.test")
	}
	stages := pipeline.DefaultStages(mainTarget, testTarget)

	targets := make(map[string]generator.Target, len(stages))
	for i := range stages {
		if opts.outputRoot != "" {
			stages[i].Target = stages[i].Target.WithDir(filepath.Join(opts.outputRoot, stages[i].Name))
		}
		targets[stages[i].Name] = stages[i].Target
	}

	pipeOpts := pipeline.Options{ToolVersion: version.Version}
	if cfg.Pipeline.UpToDateChecks && !opts.force && opts.outputRoot == "" {
		pipeOpts.Stamps = &pipeline.StampStore{Dir: cfg.StateDir()}
	}

	pl, err := pipeline.New(stages, locator, inv, pipeOpts)
	if err != nil {
		return nil, err
	}
	return &assembled{pipeline: pl, invoker: inv, locator: locator, targets: targets}, nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM, which kills any running
// generator process tree.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
