package commands

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/protoreg/errors"
	"github.com/teranos/protoreg/pipeline"
)

var (
	generateForce bool
	generateOnly  []string
)

// GenerateCmd runs the main and test stages
var GenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate type registries from descriptor sets",
	Long: `Generate type registries by running the external generator once per stage.

Stages run one at a time: main first, then test. The first failure stops the
run and every stage that has not started is skipped. Stages whose descriptor
set, command line and output are unchanged since the last run are reported
as up_to_date and not rerun.

Examples:
  protoreg generate                # Run main and test
  protoreg generate --only main    # Run main only
  protoreg generate --only test    # Run test and the stages it runs after
  protoreg generate --force        # Ignore up-to-date stamps`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	GenerateCmd.Flags().BoolVarP(&generateForce, "force", "f", false, "Regenerate even when outputs are up to date")
	GenerateCmd.Flags().StringSliceVar(&generateOnly, "only", nil, "Run only these stages (and their prerequisites)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	built, err := buildPipeline(cfg, buildOptions{force: generateForce})
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	report, err := runSelected(ctx, built.pipeline, generateOnly)
	if report != nil {
		if perr := printReport(cmd.OutOrStdout(), report); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}

	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Type registries ready (run %s)", report.RunID)
	return nil
}

// runSelected runs pl, restricted to only when it is non-empty.
func runSelected(ctx context.Context, pl *pipeline.Pipeline, only []string) (*pipeline.Report, error) {
	if len(only) > 0 {
		selected, err := pl.Select(only...)
		if err != nil {
			return nil, errors.WithHint(err, "known stages: main, test")
		}
		pl = selected
	}
	return pl.Run(ctx)
}
