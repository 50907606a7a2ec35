package commands

import (
	"context"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/protoreg/am"
	"github.com/teranos/protoreg/descriptor"
	"github.com/teranos/protoreg/errors"
	"github.com/teranos/protoreg/logger"
	"github.com/teranos/protoreg/registry"
)

var checkVerify bool

// CheckCmd verifies committed registries are current
var CheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that committed type registries are up to date",
	Long: `Check that committed type registries match what the generator produces now.

This command generates every stage into a temporary directory and compares
each result byte for byte with the committed file. Up-to-date stamps are
ignored. With --verify it also checks that each committed registry covers
exactly the types in its descriptor set.

Examples:
  protoreg check             # Compare with a fresh generation
  protoreg check --verify    # Also check type coverage`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	CheckCmd.Flags().BoolVar(&checkVerify, "verify", false, "Also verify type coverage against the descriptor sets")
}

// checkResult is the outcome for one stage.
type checkResult struct {
	Stage     string
	Committed string
	UpToDate  bool
	Coverage  *registry.Report
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	results, err := checkRegistries(ctx, cfg, checkVerify)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	stale := 0
	for _, r := range results {
		switch {
		case !r.UpToDate:
			stale++
			pterm.Warning.WithWriter(out).Printfln("%s: %s is out of date", r.Stage, r.Committed)
		case r.Coverage != nil && !r.Coverage.OK():
			stale++
			pterm.Warning.WithWriter(out).Printfln("%s: %v", r.Stage, r.Coverage.Err())
		default:
			pterm.Success.WithWriter(out).Printfln("%s: %s is up to date", r.Stage, r.Committed)
		}
	}

	if stale > 0 {
		return errors.WithHint(
			errors.Newf("%d type registr%s out of date", stale, pluralY(stale)),
			"run `protoreg generate --force` and commit the result",
		)
	}
	return nil
}

func pluralY(n int) string {
	if n == 1 {
		return "y is"
	}
	return "ies are"
}

// checkRegistries regenerates into a temp dir and compares with the committed files.
func checkRegistries(ctx context.Context, cfg *am.Config, verify bool) ([]checkResult, error) {
	tempDir, err := os.MkdirTemp("", "protoreg-check-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp directory")
	}
	defer os.RemoveAll(tempDir)

	fresh, err := buildPipeline(cfg, buildOptions{outputRoot: tempDir})
	if err != nil {
		return nil, err
	}
	report, err := fresh.pipeline.Run(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "generation for comparison failed")
	}

	log := logger.ComponentLogger("check")
	results := make([]checkResult, 0, len(report.Stages))
	for _, st := range report.Stages {
		v, err := descriptor.ParseVariant(st.Variant)
		if err != nil {
			return nil, err
		}
		target, err := cfg.Target(v)
		if err != nil {
			return nil, err
		}
		same, err := registry.CompareFiles(st.Output, target.Destination())
		if err != nil {
			return nil, err
		}
		log.Debugw("Compared registry", logger.FieldStage, st.Name, logger.FieldOutput, target.Destination(), "same", same)

		result := checkResult{Stage: st.Name, Committed: target.Destination(), UpToDate: same}
		if verify && same {
			expected, err := descriptor.TypeNamesFromFile(st.Descriptor)
			if err != nil {
				return nil, err
			}
			if result.Coverage, err = registry.VerifyFile(target.Destination(), expected); err != nil {
				return nil, err
			}
		}
		results = append(results, result)
	}
	return results, nil
}
