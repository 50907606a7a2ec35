// Package descriptor locates and reads compiled protobuf descriptor sets.
//
// A descriptor set is produced upstream by protoc (--descriptor_set_out with
// --include_imports) and holds the transitive closure of a module's schema.
// protoreg never writes one; it only resolves the path, hashes the bytes for
// up-to-date checks, and reads type names for registry verification.
package descriptor

import (
	"os"
	"sort"

	"github.com/teranos/protoreg/errors"
)

// Variant names a source set whose descriptors are compiled separately.
type Variant string

const (
	Main Variant = "main"
	Test Variant = "test"
)

// ParseVariant validates a variant name.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case Main, Test:
		return v, nil
	default:
		return "", errors.NewInvalidRequestError("unknown variant %q (supported: main, test)", s)
	}
}

// Set is an immutable reference to one variant's compiled descriptor file.
type Set struct {
	Variant Variant
	Path    string
}

// Locator resolves descriptor sets from configured paths.
type Locator struct {
	paths map[Variant]string
	stat  func(string) (os.FileInfo, error)
}

// NewLocator returns a Locator for the given variant paths. The map is copied.
func NewLocator(paths map[Variant]string) *Locator {
	copied := make(map[Variant]string, len(paths))
	for v, p := range paths {
		copied[v] = p
	}
	return &Locator{paths: copied, stat: os.Stat}
}

// Variants returns the configured variants in sorted order.
func (l *Locator) Variants() []Variant {
	variants := make([]Variant, 0, len(l.paths))
	for v := range l.paths {
		variants = append(variants, v)
	}
	sort.Slice(variants, func(i, j int) bool { return variants[i] < variants[j] })
	return variants
}

// Locate returns the descriptor set for v. It fails with a
// MissingDescriptorError when the file has not been produced.
func (l *Locator) Locate(v Variant) (Set, error) {
	path, ok := l.paths[v]
	if !ok || path == "" {
		return Set{}, errors.NewInvalidRequestError("no descriptor path configured for variant %q", v)
	}

	info, err := l.stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Set{}, errors.NewMissingDescriptor(string(v), path)
		}
		return Set{}, errors.Wrapf(err, "failed to stat descriptor set %s", path)
	}
	if info.IsDir() {
		return Set{}, errors.WithDetail(errors.NewMissingDescriptor(string(v), path), "path is a directory")
	}

	return Set{Variant: v, Path: path}, nil
}
