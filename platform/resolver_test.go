package platform

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvers(t *testing.T) {
	tests := []struct {
		name     string
		resolver PathResolver
		want     string
	}{
		{
			name:     "windows uses local app data and bat suffix",
			resolver: Windows{LocalAppData: "/appdata"},
			want:     filepath.Join("/appdata", "Pub", "Cache", "bin", "dart_code_gen.bat"),
		},
		{
			name:     "unix uses pub cache without suffix",
			resolver: Unix{Home: "/home/dev"},
			want:     filepath.Join("/home/dev", ".pub-cache", "bin", "dart_code_gen"),
		},
		{
			name:     "fixed ignores tool name",
			resolver: Fixed{Path: "/opt/gen/bin/gen"},
			want:     "/opt/gen/bin/gen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resolver.Resolve("dart_code_gen"))
		})
	}
}

func TestForOS(t *testing.T) {
	env := map[string]string{"LOCALAPPDATA": "/appdata", "HOME": "/env-home"}
	getenv := func(k string) string { return env[k] }

	t.Run("windows", func(t *testing.T) {
		r := ForOS("windows", getenv, func() (string, error) { return "/ignored", nil })
		assert.Equal(t, Windows{LocalAppData: "/appdata"}, r)
	})

	t.Run("linux uses home dir", func(t *testing.T) {
		r := ForOS("linux", getenv, func() (string, error) { return "/home/dev", nil })
		assert.Equal(t, Unix{Home: "/home/dev"}, r)
	})

	t.Run("darwin falls back to HOME", func(t *testing.T) {
		r := ForOS("darwin", getenv, func() (string, error) { return "", errors.New("no home") })
		assert.Equal(t, Unix{Home: "/env-home"}, r)
	})
}
