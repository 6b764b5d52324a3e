package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultEndpoint, cfg.Provider.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Provider.RequestTimeout)
	assert.False(t, cfg.Provider.InsecureSkipVerify)

	assert.Equal(t, 3*time.Second, cfg.Pacing.PageMin)
	assert.Equal(t, 8*time.Second, cfg.Pacing.PageMax)
	assert.Equal(t, 10*time.Second, cfg.Pacing.QueryMin)
	assert.Equal(t, 20*time.Second, cfg.Pacing.QueryMax)

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)

	assert.True(t, cfg.Download.Enabled)
	assert.Equal(t, 5, cfg.Download.ConcurrentDownloads)

	assert.Equal(t, "./xeno_canto_data", cfg.Output.BaseDirectory)
	assert.Equal(t, filepath.Join("./xeno_canto_data", "audio"), cfg.AudioDir())
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("XCSCRAPER_ENDPOINT", "https://example.test/api/3/recordings")
	t.Setenv("XCSCRAPER_API_KEY", "secret")
	t.Setenv("XCSCRAPER_REQUESTS_PER_MINUTE", "30")
	t.Setenv("XCSCRAPER_OUTPUT_DIR", "/tmp/xc")
	t.Setenv("XCSCRAPER_CONCURRENT_DOWNLOADS", "8")
	t.Setenv("XCSCRAPER_MAX_ATTEMPTS", "4")
	t.Setenv("XCSCRAPER_DOWNLOAD_AUDIO", "false")
	t.Setenv("XCSCRAPER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://example.test/api/3/recordings", cfg.Provider.Endpoint)
	assert.Equal(t, "secret", cfg.Provider.APIKey)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "/tmp/xc", cfg.Output.BaseDirectory)
	assert.Equal(t, 8, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.False(t, cfg.Download.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("XCSCRAPER_CONCURRENT_DOWNLOADS", "lots")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XCSCRAPER_CONCURRENT_DOWNLOADS")
	assert.Equal(t, 5, cfg.Download.ConcurrentDownloads)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xcscraper.yaml")

	content := `
provider:
  endpoint: "https://mirror.example/api/2/recordings"
  request_timeout: 10s
pacing:
  page_min: 1s
  page_max: 2s
retry:
  max_attempts: 5
download:
  concurrent_downloads: 2
output:
  base_directory: "/data/birds"
  audio_directory: "mp3"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "https://mirror.example/api/2/recordings", cfg.Provider.Endpoint)
	assert.Equal(t, 10*time.Second, cfg.Provider.RequestTimeout)
	assert.Equal(t, time.Second, cfg.Pacing.PageMin)
	assert.Equal(t, 2*time.Second, cfg.Pacing.PageMax)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, filepath.Join("/data/birds", "mp3"), cfg.AudioDir())

	// untouched sections keep their defaults
	assert.Equal(t, 10*time.Second, cfg.Pacing.QueryMin)
	assert.True(t, cfg.Download.Enabled)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [unclosed"), 0644))

	err := DefaultConfig().LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"relative endpoint", func(c *Config) { c.Provider.Endpoint = "/api" }, "absolute URL"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max attempts must be at least 1"},
		{"inverted page delays", func(c *Config) { c.Pacing.PageMax = time.Second; c.Pacing.PageMin = 2 * time.Second }, "page delay range"},
		{"no workers", func(c *Config) { c.Download.ConcurrentDownloads = 0 }, "concurrent downloads must be positive"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
		{"missing output", func(c *Config) { c.Output.BaseDirectory = "" }, "output directory is required"},
		{"jitter out of range", func(c *Config) { c.Retry.JitterFactor = 1.5 }, "jitter factor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":               "/tmp/out",
		"concurrent-downloads": 3,
		"download-audio":       false,
		"log-level":            "warn",
		"api-key":              "k",
	})

	assert.Equal(t, "/tmp/out", cfg.Output.BaseDirectory)
	assert.Equal(t, 3, cfg.Download.ConcurrentDownloads)
	assert.False(t, cfg.Download.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "k", cfg.Provider.APIKey)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  concurrent_downloads: 2\nlogging:\n  level: error\n"), 0644))

	t.Setenv("XCSCRAPER_CONCURRENT_DOWNLOADS", "4")

	cfg, err := Load(path, map[string]interface{}{"log-level": "debug"})
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Download.ConcurrentDownloads, "env overrides file")
	assert.Equal(t, "debug", cfg.Logging.Level, "flags override file")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Pacing.PageMin = 1500 * time.Millisecond
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Contains(t, raw, "pacing")

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 1500*time.Millisecond, loaded.Pacing.PageMin)
}
