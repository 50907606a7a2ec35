package am

import "github.com/teranos/protoreg/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Executable name is required even with generator.path set; it names the tool in messages
	if c.Generator.Executable == "" {
		return errors.New("generator.executable cannot be empty")
	}

	// Timeout: 0 = wait indefinitely, negative = invalid
	if c.Generator.TimeoutSeconds < 0 {
		return errors.Newf("generator.timeout_seconds must be >= 0, got %d", c.Generator.TimeoutSeconds)
	}

	if c.Descriptors.Main == "" {
		return errors.New("descriptors.main cannot be empty")
	}
	if c.Descriptors.Test == "" {
		return errors.New("descriptors.test cannot be empty")
	}

	if err := c.Targets.Main.validate("targets.main"); err != nil {
		return err
	}
	if err := c.Targets.Test.validate("targets.test"); err != nil {
		return err
	}

	// State dir only matters when stamps are written
	if c.Pipeline.UpToDateChecks && c.Pipeline.StateDir == "" {
		return errors.New("pipeline.state_dir cannot be empty when up_to_date_checks is enabled")
	}

	return nil
}

func (t TargetConfig) validate(prefix string) error {
	switch {
	case t.Dir == "":
		return errors.Newf("%s.dir cannot be empty", prefix)
	case t.StandardTypes == "":
		return errors.WithHint(
			errors.Newf("%s.standard_types cannot be empty", prefix),
			"set it to the module that provides well-known types, e.g. spine_client",
		)
	case t.ImportPrefix == "":
		return errors.Newf("%s.import_prefix cannot be empty (use \".\" for the target directory)", prefix)
	case t.Extension == "":
		return errors.Newf("%s.extension cannot be empty", prefix)
	}
	return nil
}
