package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.AutoExpose)
	assert.Equal(t, DefaultSelfDepth, cfg.SelfDepth)
	assert.Empty(t, cfg.Severities)
	assert.Zero(t, cfg.MaxProblems)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
auto_expose = false
self_depth = 4
max_problems = 20

[severities]
keys-to-many-navigation = "error"
redirected-noop = "info"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.AutoExpose)
	assert.Equal(t, 4, cfg.SelfDepth)
	assert.Equal(t, 20, cfg.MaxProblems)
	assert.Equal(t, "error", cfg.Severities["keys-to-many-navigation"])
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	assert.True(t, cfg.AutoExpose)
	assert.Equal(t, DefaultSelfDepth, cfg.SelfDepth)
}

func TestLoadRejectsInvalidSeverity(t *testing.T) {
	path := writeConfig(t, `
[severities]
ref-undefined = "fatal"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid severity "fatal"`)
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	path := writeConfig(t, "auto_expose = [broken")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadNormalizesSelfDepth(t *testing.T) {
	path := writeConfig(t, "self_depth = -1")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSelfDepth, cfg.SelfDepth)
}
