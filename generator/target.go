// Package generator builds and runs the external type-registry generator.
//
// The generator is invoked as
//
//	<exe> --descriptor <path> --destination <dir>/types.<ext> \
//	      --standard-types <module> --import-prefix <prefix>
//
// and is expected to write exactly one file, exit 0 on success, and report
// diagnostics on stderr otherwise.
package generator

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/teranos/protoreg/errors"
)

// OutputBase is the base name of every generated registry file.
const OutputBase = "types"

// OutputFileMode is the mode of a registry written with atomic replacement
// when no previous registry exists.
const OutputFileMode os.FileMode = 0o644

// Target describes where and how one registry is generated.
type Target struct {
	// Dir receives the generated types.<Extension> file
	Dir string
	// StandardTypes names the module that supplies well-known types
	StandardTypes string
	// ImportPrefix is prepended to imports of generated message files
	ImportPrefix string
	// Extension of the generated file, without the dot
	Extension string
}

// NewTarget validates and returns a Target.
func NewTarget(dir, standardTypes, importPrefix, extension string) (Target, error) {
	t := Target{
		Dir:           dir,
		StandardTypes: standardTypes,
		ImportPrefix:  importPrefix,
		Extension:     strings.TrimPrefix(extension, "."),
	}
	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}

// Validate checks that all fields required by the generator are set.
func (t Target) Validate() error {
	switch {
	case t.Dir == "":
		return errors.NewInvalidRequestError("target directory is empty")
	case t.StandardTypes == "":
		return errors.NewInvalidRequestError("standard types module is empty")
	case t.ImportPrefix == "":
		return errors.NewInvalidRequestError("import prefix is empty")
	case t.Extension == "":
		return errors.NewInvalidRequestError("output extension is empty")
	}
	return nil
}

// Destination returns <Dir>/types.<Extension>.
func (t Target) Destination() string {
	return filepath.Join(t.Dir, OutputBase+"."+t.Extension)
}

// WithDir returns a copy of t writing into dir.
func (t Target) WithDir(dir string) Target {
	t.Dir = dir
	return t
}
