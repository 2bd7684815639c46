package xcacheutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
invalidate_schedule: "@every 1h"
log:
  level: debug
  format: json
caches:
  user.search:
    initial_size: 1000
    capacity_limit: 4000
    timeout: 20m
  group.members:
    capacity_limit: 500
`

const sampleJSON = `{
  "caches": {
    "user.search": {"initial_size": 10, "capacity_limit": 40, "timeout": "1s"}
  }
}`

func TestParseConfig_YAML(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "@every 1h", cfg.InvalidateSchedule)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
	require.Len(t, cfg.Caches, 2)
	assert.Equal(t, CacheConfig{InitialSize: 1000, CapacityLimit: 4000, Timeout: 20 * time.Minute}, cfg.Caches["user.search"])
	assert.Equal(t, CacheConfig{CapacityLimit: 500}, cfg.Caches["group.members"])
}

func TestParseConfig_JSON(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, CacheConfig{InitialSize: 10, CapacityLimit: 40, Timeout: time.Second}, cfg.Caches["user.search"])
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig(nil, FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, cfg.Caches)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		want   error
	}{
		{name: "unsupported format", data: "a=1", format: "toml", want: ErrUnsupportedFormat},
		{name: "invalid yaml", data: "caches: [", format: FormatYAML, want: ErrParseFailed},
		{name: "invalid json", data: "{", format: FormatJSON, want: ErrParseFailed},
		{name: "wrong type", data: "caches:\n  a:\n    capacity_limit: lots\n", format: FormatYAML, want: ErrUnmarshalFailed},
		{name: "bad schedule", data: "invalidate_schedule: every hour\n", format: FormatYAML, want: ErrInvalidSchedule},
		{name: "blank name", data: "caches:\n  \" \":\n    capacity_limit: 1\n", format: FormatYAML, want: ErrEmptyName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data), tt.format)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(dir, "caches.yml")
		require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Len(t, cfg.Caches, 2)
	})

	t.Run("json file", func(t *testing.T) {
		path := filepath.Join(dir, "caches.json")
		require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o600))
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Len(t, cfg.Caches, 1)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := LoadConfig("")
		assert.ErrorIs(t, err, ErrEmptyPath)
	})

	t.Run("unknown extension", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "caches.ini"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
		assert.ErrorIs(t, err, ErrLoadFailed)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func FuzzParseConfig(f *testing.F) {
	f.Add([]byte(sampleYAML), true)
	f.Add([]byte(sampleJSON), false)
	f.Add([]byte("caches: {a: {timeout: -1}}"), true)

	f.Fuzz(func(t *testing.T, data []byte, yaml bool) {
		format := FormatJSON
		if yaml {
			format = FormatYAML
		}
		cfg, err := ParseConfig(data, format)
		if err != nil {
			return
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("parsed config fails validation: %v", err)
		}
	})
}
