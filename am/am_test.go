package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/protoreg/descriptor"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "dart_code_gen", cfg.Generator.Executable)
	assert.Zero(t, cfg.Generator.Timeout())
	assert.False(t, cfg.Generator.AtomicWrite)
	assert.Equal(t, "lib", cfg.Targets.Main.Dir)
	assert.Equal(t, "test", cfg.Targets.Test.Dir)
	assert.Equal(t, "spine_client", cfg.Targets.Main.StandardTypes)
	assert.Equal(t, ".", cfg.Targets.Test.ImportPrefix)
	assert.Equal(t, "dart", cfg.Targets.Main.Extension)
	assert.True(t, cfg.Pipeline.UpToDateChecks)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, ProjectConfigName), `
[generator]
path = "/opt/dart/bin/dart_code_gen"
timeout_seconds = 90

[targets.main]
dir = "client/lib"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/dart/bin/dart_code_gen", cfg.Generator.Path)
	assert.Equal(t, "dart_code_gen", cfg.Generator.Executable, "defaults survive partial tables")
	assert.Equal(t, 90, cfg.Generator.TimeoutSeconds)
	assert.Equal(t, "spine_client", cfg.Targets.Main.StandardTypes)
	assert.Equal(t, dir, cfg.Root)

	target, err := cfg.Target(descriptor.Main)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "client", "lib", "types.dart"), target.Destination())

	paths := cfg.DescriptorPaths()
	assert.Equal(t, filepath.Join(dir, "build", "descriptors", "test", "known_types.desc"), paths[descriptor.Test])

	_, err = LoadFromFile(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestConfig_Abs(t *testing.T) {
	cfg := &Config{Root: "/project"}
	assert.Equal(t, filepath.Join("/project", "lib"), cfg.Abs("lib"))
	assert.Equal(t, "/elsewhere/lib", cfg.Abs("/elsewhere/lib"))
	assert.Equal(t, "", cfg.Abs(""))

	assert.Equal(t, "lib", (&Config{}).Abs("lib"))
}

func TestMergeConfigFiles_Precedence(t *testing.T) {
	dir := t.TempDir()
	system := writeFile(t, filepath.Join(dir, "etc", "config.toml"), `
[generator]
executable = "system_gen"
extra_args = "--system"
`)
	user := writeFile(t, filepath.Join(dir, "home", "am.toml"), `
[generator]
executable = "user_gen"
`)
	project := writeFile(t, filepath.Join(dir, "project", ProjectConfigName), `
[targets.test]
dir = "integration"
`)

	v := viper.New()
	SetDefaults(v)
	sources, err := mergeConfigFiles(v, []ConfigLayer{
		{Source: SourceSystem, Path: system},
		{Source: SourceUser, Path: user},
		{Source: SourceProject, Path: project},
		{Source: SourceProject, Path: filepath.Join(dir, "absent.toml")},
	})
	require.NoError(t, err)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	assert.Equal(t, "user_gen", cfg.Generator.Executable)
	assert.Equal(t, "--system", cfg.Generator.ExtraArgs, "lower layers are merged, not replaced")
	assert.Equal(t, "integration", cfg.Targets.Test.Dir)
	assert.Equal(t, "lib", cfg.Targets.Main.Dir)

	assert.Equal(t, SourceInfo{Source: SourceUser, Path: user}, sources["generator.executable"])
	assert.Equal(t, SourceSystem, sources["generator.extra_args"].Source)
	assert.Equal(t, SourceProject, sources["targets.test.dir"].Source)
	_, tracked := sources["targets.main.dir"]
	assert.False(t, tracked)
}

func TestMergeConfigFiles_InvalidTOML(t *testing.T) {
	bad := writeFile(t, filepath.Join(t.TempDir(), "am.toml"), "[generator\n")

	_, err := mergeConfigFiles(viper.New(), []ConfigLayer{{Source: SourceUser, Path: bad}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
}

func TestLoad_ProjectSearchAndEnv(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HOME", filepath.Join(root, "home"))
	writeFile(t, filepath.Join(root, ProjectConfigName), `
[targets.main]
standard_types = "my_types"
`)
	nested := filepath.Join(root, "client", "lib")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)
	t.Setenv("PROTOREG_GENERATOR_TIMEOUT_SECONDS", "30")

	UseConfigFile("")
	defer Reset()

	cfg, err := Load()
	require.NoError(t, err)

	resolvedRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	gotRoot, err := filepath.EvalSymlinks(cfg.Root)
	require.NoError(t, err)
	assert.Equal(t, resolvedRoot, gotRoot)
	assert.Equal(t, "my_types", cfg.Targets.Main.StandardTypes)
	assert.Equal(t, 30, cfg.Generator.TimeoutSeconds)

	value, err := Get("targets.main.standard_types")
	require.NoError(t, err)
	assert.Equal(t, "my_types", value)

	_, err = Get("targets.main.nope")
	assert.Error(t, err)

	again, err := Load()
	require.NoError(t, err)
	assert.Same(t, cfg, again, "config is cached until Reset")
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeFile(t, filepath.Join(t.TempDir(), "custom.toml"), `
[pipeline]
up_to_date_checks = false
`)

	UseConfigFile(path)
	defer UseConfigFile("")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Pipeline.UpToDateChecks)
	assert.Equal(t, filepath.Dir(path), cfg.Root)

	UseConfigFile(filepath.Join(t.TempDir(), "absent.toml"))
	_, err = Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero timeout is valid (no timeout)", func(c *Config) { c.Generator.TimeoutSeconds = 0 }, ""},
		{"negative timeout", func(c *Config) { c.Generator.TimeoutSeconds = -1 }, "timeout_seconds"},
		{"empty executable", func(c *Config) { c.Generator.Executable = "" }, "generator.executable"},
		{"empty main descriptor", func(c *Config) { c.Descriptors.Main = "" }, "descriptors.main"},
		{"empty test dir", func(c *Config) { c.Targets.Test.Dir = "" }, "targets.test.dir"},
		{"empty standard types", func(c *Config) { c.Targets.Main.StandardTypes = "" }, "targets.main.standard_types"},
		{"empty import prefix", func(c *Config) { c.Targets.Main.ImportPrefix = "" }, "import_prefix"},
		{"empty extension", func(c *Config) { c.Targets.Test.Extension = "" }, "targets.test.extension"},
		{"state dir needed with checks", func(c *Config) { c.Pipeline.StateDir = "" }, "pipeline.state_dir"},
		{"state dir optional without checks", func(c *Config) {
			c.Pipeline.StateDir = ""
			c.Pipeline.UpToDateChecks = false
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGeneratorOptions(t *testing.T) {
	cfg := Defaults()
	cfg.Generator.TimeoutSeconds = 5
	cfg.Generator.ExtraArgs = "--verbose"
	cfg.Generator.AtomicWrite = true

	opts := cfg.GeneratorOptions()
	assert.Equal(t, "dart_code_gen", opts.Executable)
	assert.Equal(t, "--verbose", opts.ExtraArgs)
	assert.Equal(t, "5s", opts.Timeout.String())
	assert.True(t, opts.AtomicWrite)
}
