package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30000, cfg.Timeout)
	assert.True(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetValidateSSL())
	assert.False(t, cfg.GetBail())
	assert.Equal(t, []string{"DELETE"}, cfg.DestructiveMethods)
	assert.Equal(t, "console", cfg.Output)
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "srt.config.json",
			content: `{"timeout": 5000, "validateSSL": false, "headers": {"X-Api-Key": "k"},
				"macros": {"base": "/v1"}, "destructiveMethods": ["DELETE", "PURGE"], "rateLimit": 2.5, "bail": true}`,
		},
		{
			name: "yaml",
			file: "srt.yaml",
			content: `timeout: 5000
validateSSL: false
headers:
  X-Api-Key: k
macros:
  base: /v1
destructiveMethods: [DELETE, PURGE]
rateLimit: 2.5
bail: true
`,
		},
		{
			name:    "rc file holding json",
			file:    ".srtrc",
			content: `{"timeout": 5000, "validateSSL": false, "headers": {"X-Api-Key": "k"}, "macros": {"base": "/v1"}, "destructiveMethods": ["DELETE", "PURGE"], "rateLimit": 2.5, "bail": true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)

			cfg, err := LoadConfig(path)
			require.NoError(t, err)

			assert.Equal(t, 5000, cfg.Timeout)
			assert.False(t, cfg.GetValidateSSL())
			assert.True(t, cfg.GetFollowRedirects())
			assert.Equal(t, map[string]string{"X-Api-Key": "k"}, cfg.Headers)
			assert.Equal(t, map[string]string{"base": "/v1"}, cfg.Macros)
			assert.Equal(t, []string{"DELETE", "PURGE"}, cfg.DestructiveMethods)
			assert.InDelta(t, 2.5, cfg.RateLimit, 0.0001)
			assert.True(t, cfg.GetBail())
			assert.Equal(t, 10, cfg.MaxRedirects)
		})
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "srt.config.json", `{"timeout": "soon"`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config file")
}

func TestFindAndLoadConfig(t *testing.T) {
	t.Run("no file gives defaults", func(t *testing.T) {
		cfg, err := FindAndLoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("first name wins", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "srt.yaml", "timeout: 1000\n")
		writeFile(t, dir, "srt.config.json", `{"timeout": 2000}`)

		cfg, err := FindAndLoadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, 2000, cfg.Timeout)
	})
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"A": "1", "B": "2"}
	base.Macros = map[string]string{"user": "alice"}
	base.Exclude = []string{"fixtures/*"}

	override := &Config{
		Timeout:     1000,
		ValidateSSL: BoolPtr(false),
		Headers:     map[string]string{"B": "3"},
		Macros:      map[string]string{"token": "t"},
		Exclude:     []string{"*.draft.json"},
		Verbose:     BoolPtr(true),
	}

	merged := base.Merge(override)

	assert.Equal(t, 1000, merged.Timeout)
	assert.False(t, merged.GetValidateSSL())
	assert.True(t, merged.GetFollowRedirects())
	assert.True(t, merged.GetVerbose())
	assert.Equal(t, map[string]string{"A": "1", "B": "3"}, merged.Headers)
	assert.Equal(t, map[string]string{"user": "alice", "token": "t"}, merged.Macros)
	assert.Equal(t, []string{"fixtures/*", "*.draft.json"}, merged.Exclude)

	// base is untouched
	assert.Equal(t, "2", base.Headers["B"])
	assert.Equal(t, 30000, base.Timeout)
	assert.Same(t, base, base.Merge(nil))
}

func TestSaveConfig(t *testing.T) {
	for _, name := range []string{"srt.yaml", "srt.config.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := DefaultConfig()
			cfg.Macros = map[string]string{"base": "/v1"}
			require.NoError(t, cfg.SaveConfig(path))

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}
