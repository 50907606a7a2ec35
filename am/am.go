package am

import (
	"path/filepath"
	"time"

	"github.com/teranos/protoreg/descriptor"
	"github.com/teranos/protoreg/generator"
)

// Config represents the protoreg configuration
type Config struct {
	Generator   GeneratorConfig   `mapstructure:"generator" toml:"generator"`
	Descriptors DescriptorsConfig `mapstructure:"descriptors" toml:"descriptors"`
	Targets     TargetsConfig     `mapstructure:"targets" toml:"targets"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline" toml:"pipeline"`

	// Root is the directory relative paths resolve against: the directory of
	// the project config, or the working directory when there is none
	Root string `mapstructure:"-" toml:"-"`
}

// GeneratorConfig configures the external registry generator
type GeneratorConfig struct {
	Executable     string `mapstructure:"executable" toml:"executable"`           // Tool name looked up in the pub cache (default: dart_code_gen)
	Path           string `mapstructure:"path" toml:"path,omitempty"`             // Explicit executable path, bypasses pub cache lookup
	ExtraArgs      string `mapstructure:"extra_args" toml:"extra_args,omitempty"` // Shell-quoted arguments appended to every run
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"` // 0 = no timeout
	AtomicWrite    bool   `mapstructure:"atomic_write" toml:"atomic_write"`       // Write to a temp file and rename on success
}

// Timeout returns the per-run timeout, zero when disabled.
func (g GeneratorConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// DescriptorsConfig locates the compiled descriptor set of each variant
type DescriptorsConfig struct {
	Main string `mapstructure:"main" toml:"main"`
	Test string `mapstructure:"test" toml:"test"`
}

// TargetsConfig configures one generation target per variant
type TargetsConfig struct {
	Main TargetConfig `mapstructure:"main" toml:"main"`
	Test TargetConfig `mapstructure:"test" toml:"test"`
}

// TargetConfig configures where and how one registry is generated
type TargetConfig struct {
	Dir           string `mapstructure:"dir" toml:"dir"`
	StandardTypes string `mapstructure:"standard_types" toml:"standard_types"` // Module providing well-known types (default: spine_client)
	ImportPrefix  string `mapstructure:"import_prefix" toml:"import_prefix"`
	Extension     string `mapstructure:"extension" toml:"extension"`
}

// PipelineConfig configures stage sequencing
type PipelineConfig struct {
	StateDir       string `mapstructure:"state_dir" toml:"state_dir"`               // Stamp directory (default: .protoreg)
	UpToDateChecks bool   `mapstructure:"up_to_date_checks" toml:"up_to_date_checks"` // Skip stages whose inputs are unchanged
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// ProjectConfigName is the file name searched for from the working directory up.
const ProjectConfigName = "protoreg.toml"

// Abs resolves path against the config root. Absolute paths are returned as is.
func (c *Config) Abs(path string) string {
	if path == "" || filepath.IsAbs(path) || c.Root == "" {
		return path
	}
	return filepath.Join(c.Root, path)
}

// DescriptorPaths returns the absolute descriptor path of each variant.
func (c *Config) DescriptorPaths() map[descriptor.Variant]string {
	return map[descriptor.Variant]string{
		descriptor.Main: c.Abs(c.Descriptors.Main),
		descriptor.Test: c.Abs(c.Descriptors.Test),
	}
}

// Target builds the generation target for a variant.
func (c *Config) Target(v descriptor.Variant) (generator.Target, error) {
	tc := c.Targets.Main
	if v == descriptor.Test {
		tc = c.Targets.Test
	}
	return generator.NewTarget(c.Abs(tc.Dir), tc.StandardTypes, tc.ImportPrefix, tc.Extension)
}

// StateDir returns the absolute stamp directory.
func (c *Config) StateDir() string {
	return c.Abs(c.Pipeline.StateDir)
}

// GeneratorOptions maps generator settings onto invoker options.
func (c *Config) GeneratorOptions() generator.Options {
	return generator.Options{
		Executable:  c.Generator.Executable,
		ExtraArgs:   c.Generator.ExtraArgs,
		Timeout:     c.Generator.Timeout(),
		AtomicWrite: c.Generator.AtomicWrite,
	}
}
