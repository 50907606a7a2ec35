package errors

import (
	"fmt"
	"strings"
)

// Sentinels for the code generation error taxonomy. Each typed error below
// matches its sentinel through errors.Is, so callers can branch without
// knowing the concrete type.
var (
	ErrMissingDescriptor  = New("missing descriptor set")
	ErrExecutableNotFound = New("generator executable not found")
	ErrGenerationFailed   = New("generation failed")
)

// MissingDescriptorError reports that the upstream protobuf compile step has
// not produced the descriptor set for a variant.
type MissingDescriptorError struct {
	Variant string
	Path    string
}

func (e *MissingDescriptorError) Error() string {
	return fmt.Sprintf("descriptor set for %q not found at %s", e.Variant, e.Path)
}

// Is lets errors.Is(err, ErrMissingDescriptor) match.
func (e *MissingDescriptorError) Is(target error) bool {
	return target == ErrMissingDescriptor
}

// ExecutableNotFoundError reports that the generator binary is absent at the
// resolved platform path.
type ExecutableNotFoundError struct {
	Path string
}

func (e *ExecutableNotFoundError) Error() string {
	return fmt.Sprintf("cannot locate generator executable at %s", e.Path)
}

func (e *ExecutableNotFoundError) Is(target error) bool {
	return target == ErrExecutableNotFound
}

// GenerationFailedError reports a non-zero generator exit. Stderr holds the
// generator's diagnostic output exactly as captured.
type GenerationFailedError struct {
	ExitCode int
	Stderr   string
}

// Error includes the stderr only when it is a single line; longer output is
// left to the caller to print verbatim.
func (e *GenerationFailedError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" || e.MultiLine() {
		return fmt.Sprintf("generator exited with status %d", e.ExitCode)
	}
	return fmt.Sprintf("generator exited with status %d: %s", e.ExitCode, msg)
}

// MultiLine reports whether the trimmed stderr spans more than one line.
func (e *GenerationFailedError) MultiLine() bool {
	return strings.Contains(strings.TrimSpace(e.Stderr), "\n")
}

func (e *GenerationFailedError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// NewMissingDescriptor returns a MissingDescriptorError carrying a user hint.
func NewMissingDescriptor(variant, path string) error {
	return WithHint(
		WithStack(&MissingDescriptorError{Variant: variant, Path: path}),
		"run the protobuf compile step before generating the type registry",
	)
}

// NewExecutableNotFound returns an ExecutableNotFoundError carrying a user hint.
func NewExecutableNotFound(path string) error {
	return WithHint(
		WithStack(&ExecutableNotFoundError{Path: path}),
		"install the generator (dart pub global activate dart_code_gen) or set generator.path",
	)
}

// NewGenerationFailed returns a GenerationFailedError.
func NewGenerationFailed(exitCode int, stderr string) error {
	return WithStack(&GenerationFailedError{ExitCode: exitCode, Stderr: stderr})
}
