package commands

import (
	"context"
	"io"
	"os"
	"slices"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/protoreg/am"
	"github.com/teranos/protoreg/descriptor"
	"github.com/teranos/protoreg/logger"
)

var (
	watchForce    bool
	watchDebounce time.Duration
)

// WatchCmd regenerates when descriptor sets change
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerate type registries whenever descriptor sets change",
	Long: `Run the pipeline once, then again every time a descriptor set or the
project config changes. Bursts of writes from the upstream protoc step are
coalesced into a single run. Press Ctrl+C to stop.

Examples:
  protoreg watch
  protoreg watch --debounce 2s`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	WatchCmd.Flags().BoolVarP(&watchForce, "force", "f", false, "Ignore up-to-date stamps on every run")
	WatchCmd.Flags().DurationVar(&watchDebounce, "debounce", descriptor.DefaultDebounce, "Quiet period before a change triggers a run")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return watchLoop(ctx, cfg, cmd.OutOrStdout())
}

// watchedPaths returns the descriptor sets plus the project config, if any.
func watchedPaths(cfg *am.Config) (paths []string, projectConfig string) {
	for _, p := range cfg.DescriptorPaths() {
		paths = append(paths, p)
	}
	for _, layer := range am.Layers() {
		if layer.Source != am.SourceProject {
			continue
		}
		if _, err := os.Stat(layer.Path); err == nil {
			projectConfig = layer.Path
			paths = append(paths, layer.Path)
		}
	}
	slices.Sort(paths)
	return paths, projectConfig
}

// startWatcher watches the inputs of cfg and queues changes on notify.
func startWatcher(cfg *am.Config, notify descriptor.ChangeCallback) (w *descriptor.Watcher, paths []string, projectConfig string, err error) {
	paths, projectConfig = watchedPaths(cfg)
	w, err = descriptor.NewWatcher(paths, watchDebounce, notify)
	if err != nil {
		return nil, nil, "", err
	}
	w.Start()
	return w, paths, projectConfig, nil
}

func watchLoop(ctx context.Context, cfg *am.Config, out io.Writer) error {
	log := logger.ComponentLogger("watch")

	changes := make(chan []string, 1)
	notify := func(changed []string) {
		select {
		case changes <- changed:
		default:
			// a run is already queued
		}
	}

	w, paths, projectConfig, err := startWatcher(cfg, notify)
	if err != nil {
		return err
	}
	defer func() { w.Stop() }()

	runOnce := func() {
		built, err := buildPipeline(cfg, buildOptions{force: watchForce})
		if err != nil {
			PrintError(out, err)
			return
		}
		report, err := built.pipeline.Run(ctx)
		if report != nil {
			if perr := printReport(out, report); perr != nil {
				log.Warnw("Failed to print report", logger.FieldError, perr)
			}
		}
		if err != nil {
			PrintError(out, err)
		}
	}

	runOnce()
	pterm.Info.WithWriter(out).Printfln("Watching %d files (Ctrl+C to stop)", len(paths))

	for {
		select {
		case <-ctx.Done():
			pterm.Info.WithWriter(out).Println("Stopped watching")
			return nil
		case changed := <-changes:
			log.Infow("Inputs changed", "files", changed)
			if projectConfig != "" && slices.Contains(changed, projectConfig) {
				am.Reset()
				reloaded, err := loadConfig()
				if err != nil {
					PrintError(out, err)
					continue
				}
				cfg = reloaded

				// Descriptor paths may have moved with the new config
				next, nextPaths, nextProject, err := startWatcher(cfg, notify)
				if err != nil {
					logger.Errorw("Failed to rewatch inputs after config reload, keeping previous paths",
						logger.FieldError, err)
				} else {
					w.Stop()
					w, paths, projectConfig = next, nextPaths, nextProject
					logger.Infow("Project config reloaded", "files", paths)
				}
			}
			runOnce()
		}
	}
}
