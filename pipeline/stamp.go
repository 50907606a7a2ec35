package pipeline

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/protoreg/errors"
	"github.com/teranos/protoreg/version"
)

// Stamp records the inputs and output of a successful stage run.
type Stamp struct {
	ToolVersion      string    `toml:"tool_version"`
	DescriptorSHA256 string    `toml:"descriptor_sha256"`
	Command          []string  `toml:"command"`
	OutputSHA256     string    `toml:"output_sha256"`
	GeneratedAt      time.Time `toml:"generated_at"`
}

// Matches reports whether s was produced from the same inputs with a
// compatible protoreg version.
func (s *Stamp) Matches(toolVersion, descriptorSHA string, command []string) bool {
	return version.Compatible(toolVersion, s.ToolVersion) &&
		s.DescriptorSHA256 == descriptorSHA &&
		slices.Equal(s.Command, command)
}

// StampStore keeps one stamp file per stage under Dir.
type StampStore struct {
	Dir string
}

func (s *StampStore) path(stage string) string {
	return filepath.Join(s.Dir, stage+".toml")
}

// Load returns the stamp for stage, or nil when there is none. A corrupt stamp
// is treated as absent.
func (s *StampStore) Load(stage string) (*Stamp, error) {
	data, err := os.ReadFile(s.path(stage))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read stamp for %q", stage)
	}
	var stamp Stamp
	if err := toml.Unmarshal(data, &stamp); err != nil {
		return nil, nil
	}
	return &stamp, nil
}

// Save writes the stamp for stage.
func (s *StampStore) Save(stage string, stamp *Stamp) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create state directory %s", s.Dir)
	}
	data, err := toml.Marshal(stamp)
	if err != nil {
		return errors.Wrap(err, "failed to encode stamp")
	}
	if err := os.WriteFile(s.path(stage), data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write stamp for %q", stage)
	}
	return nil
}

// Delete removes the stamp for stage if present.
func (s *StampStore) Delete(stage string) error {
	if err := os.Remove(s.path(stage)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete stamp for %q", stage)
	}
	return nil
}
