package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringneck/libwebphone/internal/buildinfo"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := RootCommand(buildinfo.NewContext("v1.4.0", "2026-05-01", "abc1234"))
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "libwebphone v1.4.0")
	assert.Contains(t, out.String(), "abc1234")
}

func TestToneCommandWritesWAV(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "tones.wav")

	var out bytes.Buffer
	root := RootCommand(buildinfo.NewContext("", "", ""))
	root.SetOut(&out)
	root.SetArgs([]string{"tone", "12#", "--output", path})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	assert.Equal(t, uint16(2), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)

	dur, err := dec.Duration()
	require.NoError(t, err)
	// three 150ms tones, two 50ms gaps and padding
	assert.Greater(t, dur.Seconds(), 0.5)
}

func TestToneCommandRejectsBadDigits(t *testing.T) {
	t.Chdir(t.TempDir())
	root := RootCommand(buildinfo.NewContext("", "", ""))
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"tone", "12x", "--output", filepath.Join(t.TempDir(), "bad.wav")})

	assert.Error(t, root.Execute())
}
