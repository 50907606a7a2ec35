package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/protoreg/am"
	"github.com/teranos/protoreg/descriptor"
	"github.com/teranos/protoreg/errors"
)

var planFormat string

// PlanCmd prints what generate would run
var PlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the generator commands without running them",
	Long: `Print each stage in execution order with its resolved descriptor set,
output file and full generator command line. Nothing is executed.

Examples:
  protoreg plan
  protoreg plan --format json`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	PlanCmd.Flags().StringVar(&planFormat, "format", "text", "Output format: text, json, yaml")
}

// planEntry describes one stage as generate would run it.
type planEntry struct {
	Stage             string   `json:"stage" yaml:"stage"`
	After             []string `json:"after,omitempty" yaml:"after,omitempty"`
	Descriptor        string   `json:"descriptor" yaml:"descriptor"`
	DescriptorExists  bool     `json:"descriptor_exists" yaml:"descriptor_exists"`
	Output            string   `json:"output" yaml:"output"`
	Command           []string `json:"command" yaml:"command"`
	CommandLine       string   `json:"command_line" yaml:"command_line"`
	ExecutableMissing bool     `json:"executable_missing,omitempty" yaml:"executable_missing,omitempty"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	entries, err := buildPlan(cfg)
	if err != nil {
		return err
	}
	return writePlan(cmd.OutOrStdout(), entries, planFormat)
}

func buildPlan(cfg *am.Config) ([]planEntry, error) {
	built, err := buildPipeline(cfg, buildOptions{force: true})
	if err != nil {
		return nil, err
	}

	paths := cfg.DescriptorPaths()
	var entries []planEntry
	for _, st := range built.pipeline.Stages() {
		set := descriptor.Set{Variant: st.Variant, Path: paths[st.Variant]}
		_, statErr := os.Stat(set.Path)
		command := built.invoker.Command(set, st.Target)
		entries = append(entries, planEntry{
			Stage:             st.Name,
			After:             st.After,
			Descriptor:        set.Path,
			DescriptorExists:  statErr == nil,
			Output:            st.Target.Destination(),
			Command:           command.Argv(),
			CommandLine:       command.String(),
			ExecutableMissing: !built.invoker.Available(),
		})
	}
	return entries, nil
}

func writePlan(w io.Writer, entries []planEntry, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal plan to JSON")
		}
		fmt.Fprintln(w, string(data))
	case "yaml":
		data, err := yaml.Marshal(entries)
		if err != nil {
			return errors.Wrap(err, "failed to marshal plan to YAML")
		}
		fmt.Fprint(w, string(data))
	case "text":
		for i, e := range entries {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%d. %s", i+1, e.Stage)
			if len(e.After) > 0 {
				fmt.Fprintf(w, " (after %s)", strings.Join(e.After, ", "))
			}
			fmt.Fprintln(w)
			missing := ""
			if !e.DescriptorExists {
				missing = " (missing)"
			}
			fmt.Fprintf(w, "   descriptor: %s%s\n", e.Descriptor, missing)
			fmt.Fprintf(w, "   output:     %s\n", e.Output)
			fmt.Fprintf(w, "   $ %s\n", e.CommandLine)
		}
		if len(entries) > 0 && entries[0].ExecutableMissing {
			fmt.Fprintf(w, "\nwarning: generator executable not found at %s\n", entries[0].Command[0])
		}
	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: text, json, yaml)", format)
	}
	return nil
}
