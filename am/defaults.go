package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Generator defaults
	v.SetDefault("generator.executable", "dart_code_gen")
	v.SetDefault("generator.path", "")
	v.SetDefault("generator.extra_args", "")
	v.SetDefault("generator.timeout_seconds", 0) // Wait for the generator indefinitely
	v.SetDefault("generator.atomic_write", false)

	// Descriptor sets as produced by protoc --descriptor_set_out
	v.SetDefault("descriptors.main", "build/descriptors/main/known_types.desc")
	v.SetDefault("descriptors.test", "build/descriptors/test/known_types.desc")

	// Target defaults
	v.SetDefault("targets.main.dir", "lib")
	v.SetDefault("targets.main.standard_types", "spine_client")
	v.SetDefault("targets.main.import_prefix", ".")
	v.SetDefault("targets.main.extension", "dart")
	v.SetDefault("targets.test.dir", "test")
	v.SetDefault("targets.test.standard_types", "spine_client")
	v.SetDefault("targets.test.import_prefix", ".")
	v.SetDefault("targets.test.extension", "dart")

	// Pipeline defaults
	v.SetDefault("pipeline.state_dir", ".protoreg")
	v.SetDefault("pipeline.up_to_date_checks", true)
}

// Defaults returns a Config holding only default values.
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		// defaults always decode
		panic(err)
	}
	return cfg
}
