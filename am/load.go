package am

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/protoreg/errors"
	"github.com/teranos/protoreg/logger"
)

// EnvPrefix prefixes environment overrides, e.g. PROTOREG_GENERATOR_PATH.
const EnvPrefix = "PROTOREG"

var (
	globalConfig  *Config
	viperInstance *viper.Viper
	explicitFile  string
	projectRoot   string
)

// ConfigSources records which layer supplied each file-backed key during the
// last load. Keys absent here come from defaults or the environment.
var ConfigSources = map[string]SourceInfo{}

// UseConfigFile makes Load read path as the project config instead of
// searching for protoreg.toml. An empty path restores the search.
func UseConfigFile(path string) {
	explicitFile = path
	Reset()
}

// Load reads the protoreg configuration using Viper
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v, err := initViper()
	if err != nil {
		return nil, err
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}
	config.Root = projectRoot

	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() (*viper.Viper, error) {
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path on top of
// defaults, ignoring other config files and the environment.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", configPath)
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", configPath)
	}
	config.Root = filepath.Dir(abs)
	return config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
	projectRoot = ""
	ConfigSources = map[string]SourceInfo{}
}

// initViper initializes Viper with configuration sources and defaults
func initViper() (*viper.Viper, error) {
	if viperInstance != nil {
		return viperInstance, nil
	}

	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	project := explicitFile
	if project != "" {
		if _, err := os.Stat(project); err != nil {
			return nil, errors.WithHint(
				errors.Wrapf(err, "config file %s", project),
				"check the --config flag or run `protoreg am init`",
			)
		}
	} else {
		project = findProjectConfig()
	}

	projectRoot = rootFor(project)
	if project != "" {
		if abs, err := filepath.Abs(project); err == nil {
			project = abs
		}
	}

	layers := configLayers(project)
	sources, err := mergeConfigFiles(v, layers)
	if err != nil {
		return nil, err
	}
	ConfigSources = sources

	viperInstance = v
	return v, nil
}

// rootFor returns the directory relative paths resolve against.
func rootFor(project string) string {
	if project != "" {
		if abs, err := filepath.Abs(project); err == nil {
			return filepath.Dir(abs)
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}

// findProjectConfig searches for protoreg.toml by walking up the directory tree.
// Returns the path to the first config file found, or empty string if none found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, ProjectConfigName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// ConfigLayer is one config file in the merge order.
type ConfigLayer struct {
	Source ConfigSource
	Path   string
}

// configLayers lists config files from lowest to highest precedence.
func configLayers(project string) []ConfigLayer {
	layers := []ConfigLayer{
		{Source: SourceSystem, Path: "/etc/protoreg/config.toml"},
	}
	if home, err := os.UserHomeDir(); err == nil {
		layers = append(layers, ConfigLayer{Source: SourceUser, Path: filepath.Join(home, ".protoreg", "am.toml")})
	}
	if project != "" {
		layers = append(layers, ConfigLayer{Source: SourceProject, Path: project})
	}
	return layers
}

// Layers returns the config files Load considers, in precedence order.
func Layers() []ConfigLayer {
	project := explicitFile
	if project == "" {
		project = findProjectConfig()
	}
	return configLayers(project)
}

// mergeConfigFiles deep-merges existing layer files into v, lowest precedence
// first. Environment variables still win over every file. It returns the
// layer that last set each key.
func mergeConfigFiles(v *viper.Viper, layers []ConfigLayer) (map[string]SourceInfo, error) {
	sources := make(map[string]SourceInfo)
	for _, layer := range layers {
		if _, err := os.Stat(layer.Path); err != nil {
			continue
		}

		layerViper := viper.New()
		layerViper.SetConfigFile(layer.Path)
		layerViper.SetConfigType("toml")
		if err := layerViper.ReadInConfig(); err != nil {
			return nil, errors.WithHint(
				errors.Wrapf(err, "failed to parse %s config %s", layer.Source, layer.Path),
				"fix the TOML syntax or remove the file",
			)
		}

		settings := layerViper.AllSettings()
		if err := v.MergeConfigMap(settings); err != nil {
			return nil, errors.Wrapf(err, "failed to merge %s", layer.Path)
		}
		keys := flattenKeys(settings, "")
		for _, key := range keys {
			sources[key] = SourceInfo{Source: layer.Source, Path: layer.Path}
		}
		logger.Debugw("Merged config layer", "source", layer.Source, logger.FieldPath, layer.Path, "keys", len(keys))
	}
	return sources, nil
}

func flattenKeys(settings map[string]interface{}, prefix string) []string {
	var keys []string
	for k, value := range settings {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		if nested, ok := value.(map[string]interface{}); ok {
			keys = append(keys, flattenKeys(nested, full)...)
			continue
		}
		keys = append(keys, full)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a configuration value using dot notation
func Get(key string) (interface{}, error) {
	v, err := initViper()
	if err != nil {
		return nil, err
	}
	if !v.IsSet(key) {
		return nil, errors.NewNotFoundError("unknown config key %q", key)
	}
	return v.Get(key), nil
}

// AllSettings returns the merged configuration as a nested map.
func AllSettings() (map[string]interface{}, error) {
	v, err := initViper()
	if err != nil {
		return nil, err
	}
	return v.AllSettings(), nil
}
