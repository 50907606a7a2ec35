// Package registry inspects generated type registry files.
//
// The generator's output format is its own; protoreg only relies on registry
// keys appearing as string literals in map-key position (followed by ':'),
// either as the bare fully-qualified type name ('spine.test.Foo') or as a type
// URL ('type.spine.io/spine.test.Foo'). Literals used as map values, such as
// the type URLs of a reverse lookup map, are not keys.
package registry

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/teranos/protoreg/errors"
)

// Report is the outcome of checking a registry against the expected types.
type Report struct {
	// Missing lists expected types with no registry key
	Missing []string
	// Duplicates lists types keyed more than once
	Duplicates []string
	// Unexpected lists type-URL keys for types not in the descriptor set
	Unexpected []string
	// Keys is the number of registry keys found
	Keys int
}

// OK reports whether every expected type is keyed exactly once and nothing else is.
func (r *Report) OK() bool {
	return len(r.Missing) == 0 && len(r.Duplicates) == 0 && len(r.Unexpected) == 0
}

// Err summarizes a failed report as an error, or returns nil.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	var parts []string
	if n := len(r.Missing); n > 0 {
		parts = append(parts, plural(n, "missing type")+": "+strings.Join(r.Missing, ", "))
	}
	if n := len(r.Duplicates); n > 0 {
		parts = append(parts, plural(n, "duplicate key")+": "+strings.Join(r.Duplicates, ", "))
	}
	if n := len(r.Unexpected); n > 0 {
		parts = append(parts, plural(n, "unexpected type")+": "+strings.Join(r.Unexpected, ", "))
	}
	return errors.Newf("type registry does not match descriptor set: %s", strings.Join(parts, "; "))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// Single- or double-quoted literal without escapes or newlines, with the
// token that follows it.
var literalPattern = regexp.MustCompile(`(?:'([^'\\\n]*)'|"([^"\\\n]*)")\s*(::?)?`)

// Type URL: a dotted host, a slash, then a dotted identifier path.
var typeURLPattern = regexp.MustCompile(`^[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)+/([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)+)$`)

// Verify checks artifact against the expected fully-qualified type names.
func Verify(artifact []byte, expected []string) *Report {
	want := make(map[string]struct{}, len(expected))
	for _, name := range expected {
		want[name] = struct{}{}
	}

	report := &Report{}
	counts := make(map[string]int)
	unexpected := make(map[string]struct{})
	for _, m := range literalPattern.FindAllSubmatchIndex(artifact, -1) {
		if !isKey(artifact, m) {
			continue
		}
		var lit string
		if m[2] >= 0 {
			lit = string(artifact[m[2]:m[3]])
		} else {
			lit = string(artifact[m[4]:m[5]])
		}
		if _, ok := want[lit]; ok {
			counts[lit]++
			report.Keys++
			continue
		}
		if sub := typeURLPattern.FindStringSubmatch(lit); sub != nil {
			report.Keys++
			if _, ok := want[sub[1]]; ok {
				counts[sub[1]]++
			} else {
				unexpected[sub[1]] = struct{}{}
			}
		}
	}

	for name := range want {
		switch n := counts[name]; {
		case n == 0:
			report.Missing = append(report.Missing, name)
		case n > 1:
			report.Duplicates = append(report.Duplicates, name)
		}
	}
	for name := range unexpected {
		report.Unexpected = append(report.Unexpected, name)
	}

	sort.Strings(report.Missing)
	sort.Strings(report.Duplicates)
	sort.Strings(report.Unexpected)
	return report
}

// isKey reports whether the literal match m is followed by a single ':' and
// is not the middle operand of a conditional expression.
func isKey(artifact []byte, m []int) bool {
	if m[6] < 0 || m[7]-m[6] != 1 {
		return false
	}
	prev := bytes.TrimRight(artifact[:m[0]], " \t\r\n")
	return len(prev) == 0 || prev[len(prev)-1] != '?'
}

// VerifyFile reads the registry at path and verifies it.
func VerifyFile(path string, expected []string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read registry %s", path)
	}
	return Verify(data, expected), nil
}

// CompareFiles reports whether the files at a and b are byte-identical.
// A missing b counts as a difference; a missing a is an error.
func CompareFiles(a, b string) (bool, error) {
	left, err := os.ReadFile(a)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read %s", a)
	}
	right, err := os.ReadFile(b)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to read %s", b)
	}
	return bytes.Equal(left, right), nil
}
