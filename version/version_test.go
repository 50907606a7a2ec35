package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompatible(t *testing.T) {
	tests := []struct {
		current, other string
		want           bool
	}{
		{"1.4.0", "1.0.2", true},
		{"v1.4.0", "1.9.9", true},
		{"2.0.0", "1.9.9", false},
		{"dev", "dev", true},
		{"dev", "1.0.0", false},
		{"1.0.0", "dev", false},
		{"1.0.0", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compatible(tt.current, tt.other), "%s vs %s", tt.current, tt.other)
	}
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "dev", CommitHash: "abc1234", BuildTime: "now"}
	assert.True(t, strings.HasPrefix(info.String(), "protoreg dev"))

	info.Version = "1.2.3"
	assert.Contains(t, info.String(), "protoreg 1.2.3")
}
