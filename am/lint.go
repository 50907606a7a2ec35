package am

import (
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/teranos/protoreg/errors"
)

// Lint decodes a config file strictly and returns the keys protoreg does not
// recognize, sorted. Viper ignores unknown keys, so a misspelled key would
// otherwise leave the default in effect.
func Lint(path string) ([]string, error) {
	if isBackupFile(path) {
		return nil, errors.NewInvalidRequestError("%s is a config backup", path)
	}

	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}

	var unknown []string
	for _, key := range meta.Undecoded() {
		unknown = append(unknown, key.String())
	}
	sort.Strings(unknown)
	return unknown, nil
}
