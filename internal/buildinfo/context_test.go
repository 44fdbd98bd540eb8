package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextGetters(t *testing.T) {
	tests := []struct {
		name        string
		ctx         *Context
		wantVersion string
		wantDate    string
		wantCommit  string
	}{
		{
			name:        "nil context",
			ctx:         nil,
			wantVersion: UnknownValue,
			wantDate:    UnknownValue,
			wantCommit:  UnknownValue,
		},
		{
			name:        "empty fields",
			ctx:         NewContext("", "", ""),
			wantVersion: UnknownValue,
			wantDate:    UnknownValue,
			wantCommit:  UnknownValue,
		},
		{
			name:        "all set",
			ctx:         NewContext("1.2.0", "2026-01-01", "abc1234"),
			wantVersion: "1.2.0",
			wantDate:    "2026-01-01",
			wantCommit:  "abc1234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantVersion, tt.ctx.GetVersion())
			assert.Equal(t, tt.wantDate, tt.ctx.GetBuildDate())
			assert.Equal(t, tt.wantCommit, tt.ctx.GetCommit())
		})
	}
}

func TestReleaseAndEnvironment(t *testing.T) {
	tests := []struct {
		version     string
		release     string
		environment string
	}{
		{"", "libwebphone@unknown", "development"},
		{"dev", "libwebphone@dev", "development"},
		{"v0.4.1", "libwebphone@v0.4.1", "production"},
	}

	for _, tt := range tests {
		t.Run(tt.release, func(t *testing.T) {
			c := NewContext(tt.version, "", "")
			assert.Equal(t, tt.release, c.Release())
			assert.Equal(t, tt.environment, c.Environment())
		})
	}
}

func TestString(t *testing.T) {
	s := NewContext("v1.0.0", "2026-03-01", "deadbee").String()
	assert.Contains(t, s, "libwebphone v1.0.0")
	assert.Contains(t, s, "commit deadbee")
	assert.Contains(t, s, "built 2026-03-01")
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)
}
