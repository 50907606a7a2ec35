package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/protoreg/am"
	"github.com/teranos/protoreg/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage protoreg configuration",
	Long: `am - Manage protoreg configuration ("I am")

Display, validate and initialize protoreg configuration.

Configuration sources (in order of precedence):
1. Environment variables (PROTOREG_* prefix, e.g. PROTOREG_GENERATOR_PATH)
2. Project config (protoreg.toml, searched upward from the working directory,
   or the file given with --config)
3. User config (~/.protoreg/am.toml)
4. System config (/etc/protoreg/config.toml)
5. Default values

Examples:
  protoreg am show                       # Show current configuration
  protoreg am show --format json         # Show configuration in JSON format
  protoreg am get targets.main.dir       # Get specific config value
  protoreg am validate                   # Validate current configuration
  protoreg am where                      # Show where each value comes from
  protoreg am init                       # Write protoreg.toml with defaults`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the merged protoreg configuration from all sources",
	Args:  cobra.NoArgs,
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., generator.executable, targets.test.dir)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate the merged configuration and report unknown keys in every config file",
	Args:  cobra.NoArgs,
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade and which files were checked.

Lists all configuration sources in order of precedence, showing
which files exist, and which source supplied each setting.`,
	Args: cobra.NoArgs,
	RunE: runAmWhere,
}

var amInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a protoreg.toml with default values",
	Long:  "Write protoreg.toml with every default value into the current directory",
	Args:  cobra.NoArgs,
	RunE:  runAmInit,
}

var (
	configFormat string
	initForce    bool
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amInitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Replace an existing protoreg.toml (kept as .back1)")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
	AmCmd.AddCommand(amInitCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	settings, err := am.AllSettings()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	return writeSettings(cmd.OutOrStdout(), settings, configFormat)
}

func writeSettings(w io.Writer, settings map[string]interface{}, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(settings, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Fprintln(w, string(data))

	case "yaml":
		data, err := yaml.Marshal(settings)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(w, "# protoreg configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(settings)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(w, "# protoreg configuration\n%s", string(data))

	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml)", format)
	}
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	value, err := am.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	lintLayers(out)

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	pterm.Success.WithWriter(out).Println("Configuration is valid")
	return nil
}

// lintLayers warns about unknown keys in every existing config file.
func lintLayers(w io.Writer) {
	for _, layer := range am.Layers() {
		if _, err := os.Stat(layer.Path); err != nil {
			continue
		}
		unknown, err := am.Lint(layer.Path)
		if err != nil {
			pterm.Warning.WithWriter(w).Printfln("%s: %v", layer.Path, err)
			continue
		}
		for _, key := range unknown {
			pterm.Warning.WithWriter(w).Printfln("%s: unknown key %q is ignored", layer.Path, key)
		}
	}
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	intro, err := am.GetConfigIntrospection()
	if err != nil {
		return errors.Wrap(err, "failed to get config introspection")
	}

	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(out, "  [DEFAULT]  Built-in defaults")
	for _, layer := range am.Layers() {
		status := "missing"
		if _, err := os.Stat(layer.Path); err == nil {
			status = "found"
		}
		fmt.Fprintf(out, "  [%-7s]  %s (%s)\n", strings.ToUpper(string(layer.Source)), layer.Path, status)
	}
	fmt.Fprintf(out, "  [ENV    ]  %s_* environment variables\n", am.EnvPrefix)
	fmt.Fprintf(out, "\nRelative paths resolve against %s\n\n", intro.Root)

	data := pterm.TableData{{"Key", "Value", "Source", "From"}}
	for _, s := range intro.Settings {
		data = append(data, []string{s.Key, fmt.Sprint(s.Value), string(s.Source), s.SourcePath})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(data).Render(); err != nil {
		return err
	}

	lintLayers(out)
	return nil
}

func runAmInit(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "failed to determine working directory")
	}
	path, err := am.InitProject(wd, initForce)
	if err != nil {
		return err
	}
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Wrote %s", path)
	return nil
}
