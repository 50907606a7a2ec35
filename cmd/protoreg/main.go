package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/protoreg/am"
	"github.com/teranos/protoreg/cmd/protoreg/commands"
	"github.com/teranos/protoreg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "protoreg",
	Short: "protoreg - Protobuf type registry generation",
	Long: `protoreg - Generate client type registries from Protobuf descriptor sets.

protoreg locates the descriptor sets compiled by protoc, runs the external
registry generator (dart_code_gen by default) once per stage, and reports
failures with the generator's own diagnostics.

Available commands:
  generate - Generate type registries (main, then test)
  check    - Verify committed registries are up to date
  watch    - Regenerate whenever descriptor sets change
  plan     - Show generator commands without running them
  am       - Manage protoreg configuration ("I am")
  version  - Show version information

Examples:
  protoreg generate            # Generate main and test registries
  protoreg check --verify      # CI: fail on stale registries
  protoreg plan                # Show what generate would run
  protoreg am where            # Show configuration sources`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		configFile, _ := cmd.Flags().GetString("config")
		am.UseConfigFile(configFile)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON on stderr")
	rootCmd.PersistentFlags().String("config", "", "Project config file (default: protoreg.toml searched upward)")

	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.CheckCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.PlanCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		commands.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
