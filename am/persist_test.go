package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersist_RoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectConfigName)

	cfg := Defaults()
	cfg.Generator.Path = "/opt/gen"
	cfg.Targets.Test.Dir = "integration"
	require.NoError(t, Persist(path, cfg))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/gen", loaded.Generator.Path)
	assert.Equal(t, "integration", loaded.Targets.Test.Dir)

	unknown, err := Lint(path)
	require.NoError(t, err)
	assert.Empty(t, unknown, "persisted config uses only known keys")
}

func TestPersist_RotatesBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectConfigName)
	cfg := Defaults()

	for i, dir := range []string{"a", "b", "c", "d", "e"} {
		cfg.Targets.Main.Dir = dir
		require.NoError(t, Persist(path, cfg), "write %d", i)
	}

	for suffix, dir := range map[string]string{".back1": "d", ".back2": "c", ".back3": "b"} {
		backup, err := LoadFromFile(path + suffix)
		require.NoError(t, err, suffix)
		assert.Equal(t, dir, backup.Targets.Main.Dir, suffix)
	}
	assert.NoFileExists(t, path+".back4")

	current, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "e", current.Targets.Main.Dir)
}

func TestInitProject(t *testing.T) {
	dir := t.TempDir()

	path, err := InitProject(dir, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ProjectConfigName), path)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())

	_, err = InitProject(dir, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = InitProject(dir, true)
	require.NoError(t, err)
	assert.FileExists(t, path+".back1")
}

func TestLint(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), ProjectConfigName), `
[generator]
executable = "dart_code_gen"
timeout = 10

[targets.main]
standard_type = "spine_client"
`)

	unknown, err := Lint(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"generator.timeout", "targets.main.standard_type"}, unknown)

	_, err = Lint(path + ".back1")
	assert.Error(t, err)

	bad := writeFile(t, filepath.Join(t.TempDir(), "bad.toml"), "[targets\n")
	_, err = Lint(bad)
	assert.Error(t, err)

	require.NoError(t, os.Remove(path))
	_, err = Lint(path)
	assert.Error(t, err)
}

func TestFlattenSettingsWithSources(t *testing.T) {
	settings := map[string]interface{}{
		"generator": map[string]interface{}{"executable": "gen", "timeout_seconds": 0},
		"pipeline":  map[string]interface{}{"state_dir": ".protoreg"},
	}
	sources := map[string]SourceInfo{
		"generator.executable": {Source: SourceProject, Path: "/p/protoreg.toml"},
	}
	env := map[string]string{"PROTOREG_PIPELINE_STATE_DIR": "/tmp/state"}

	out := &ConfigIntrospection{}
	flattenSettingsWithSources(settings, "", out, sources, func(k string) string { return env[k] })

	require.Len(t, out.Settings, 3)
	assert.Equal(t, SettingInfo{Key: "generator.executable", Value: "gen", Source: SourceProject, SourcePath: "/p/protoreg.toml"}, out.Settings[0])
	assert.Equal(t, SourceDefault, out.Settings[1].Source)
	assert.Equal(t, "generator.timeout_seconds", out.Settings[1].Key)
	assert.Equal(t, SettingInfo{Key: "pipeline.state_dir", Value: ".protoreg", Source: SourceEnvironment, SourcePath: "PROTOREG_PIPELINE_STATE_DIR"}, out.Settings[2])
}
