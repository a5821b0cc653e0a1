package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
services:
  - id: files
    name: Files
    enabled: true
    command: files-server
    args: ["--root", "/data"]
    env:
      MODE: ro
    timeoutMs: 20000
  - id: scratch
    name: Scratch
    enabled: false
`

func TestParseYAML(t *testing.T) {
	configs, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, configs, 2)

	files := configs[0]
	assert.Equal(t, "files", files.ID)
	assert.True(t, files.Enabled)
	assert.Equal(t, "files-server", files.Command)
	assert.Equal(t, []string{"--root", "/data"}, files.Args)
	assert.Equal(t, map[string]string{"MODE": "ro"}, files.Env)
	assert.Equal(t, 20000, files.TimeoutMS)

	assert.False(t, configs[1].Enabled)
}

func TestParseJSON(t *testing.T) {
	configs, err := Parse([]byte(`{"services": [{"id": "web", "enabled": true, "command": "web-server"}]}`))
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "web", configs[0].ID)
}

func TestParseValidation(t *testing.T) {
	_, err := Parse([]byte("services:\n  - name: NoID\n    enabled: false\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id is required")

	_, err = Parse([]byte("services:\n  - id: x\n    enabled: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command is required")

	// A disabled service needs no command.
	configs, err := Parse([]byte("services:\n  - id: x\n    enabled: false\n"))
	require.NoError(t, err)
	assert.Len(t, configs, 1)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("services: [unterminated"))
	assert.Error(t, err)
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	loader, err := NewLoader(path)
	require.NoError(t, err)

	configs, hash, err := loader.Load()
	require.NoError(t, err)
	assert.Len(t, configs, 2)
	assert.Len(t, hash, 64, "sha-256 hex digest")

	_, hash2, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, hash, hash2, "same content, same hash")
}

func TestLoaderMissingFile(t *testing.T) {
	loader, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	_, _, err = loader.Load()
	assert.Error(t, err)

	_, err = NewLoader("  ")
	assert.Error(t, err)
}
