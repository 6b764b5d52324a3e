package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is the xeno-canto recordings API
const DefaultEndpoint = "https://xeno-canto.org/api/2/recordings"

// Config holds all configuration options for the crawler
type Config struct {
	// Remote provider settings
	Provider ProviderConfig `yaml:"provider" json:"provider"`

	// Request rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Delays between pages and between queries
	Pacing PacingConfig `yaml:"pacing" json:"pacing"`

	// Page fetch retry policy
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Asset download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output layout
	Output OutputConfig `yaml:"output" json:"output"`

	// Desktop notifications
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ProviderConfig holds remote API configuration
type ProviderConfig struct {
	Endpoint           string        `yaml:"endpoint" json:"endpoint"`
	APIKey             string        `yaml:"api_key" json:"api_key"`
	UserAgents         []string      `yaml:"user_agents" json:"user_agents"`
	RequestTimeout     time.Duration `yaml:"request_timeout" json:"request_timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
}

// RateLimitConfig holds request rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// PacingConfig holds the randomized delays applied between pages and queries
type PacingConfig struct {
	PageMin  time.Duration `yaml:"page_min" json:"page_min"`
	PageMax  time.Duration `yaml:"page_max" json:"page_max"`
	QueryMin time.Duration `yaml:"query_min" json:"query_min"`
	QueryMax time.Duration `yaml:"query_max" json:"query_max"`
}

// RetryConfig holds the page fetch retry policy
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// DownloadConfig holds asset download configuration
type DownloadConfig struct {
	Enabled             bool          `yaml:"enabled" json:"enabled"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	MaxFileSize         int64         `yaml:"max_file_size" json:"max_file_size"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory  string `yaml:"base_directory" json:"base_directory"`
	AudioDirectory string `yaml:"audio_directory" json:"audio_directory"`
	CheckpointDir  string `yaml:"checkpoint_dir" json:"checkpoint_dir"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" json:"on_error"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Endpoint:       DefaultEndpoint,
			RequestTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
			BurstSize:         5,
		},
		Pacing: PacingConfig{
			PageMin:  3 * time.Second,
			PageMax:  8 * time.Second,
			QueryMin: 10 * time.Second,
			QueryMax: 20 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			BaseDelay:    1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Download: DownloadConfig{
			Enabled:             true,
			ConcurrentDownloads: 5,
			DownloadTimeout:     2 * time.Minute,
			MaxFileSize:         0, // 0 means no limit
		},
		Output: OutputConfig{
			BaseDirectory:  "./xeno_canto_data",
			AudioDirectory: "audio",
		},
		Notifications: NotificationConfig{
			Enabled:    false,
			OnComplete: true,
			OnError:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   "",
			Format: "text",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if endpoint := os.Getenv("XCSCRAPER_ENDPOINT"); endpoint != "" {
		c.Provider.Endpoint = endpoint
	}
	if apiKey := os.Getenv("XCSCRAPER_API_KEY"); apiKey != "" {
		c.Provider.APIKey = apiKey
	}
	if userAgent := os.Getenv("XCSCRAPER_USER_AGENT"); userAgent != "" {
		c.Provider.UserAgents = []string{userAgent}
	}

	if rpm := os.Getenv("XCSCRAPER_REQUESTS_PER_MINUTE"); rpm != "" {
		val, err := strconv.Atoi(rpm)
		if err != nil {
			errs = append(errs, fmt.Errorf("XCSCRAPER_REQUESTS_PER_MINUTE: %w", err))
		} else if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if outputDir := os.Getenv("XCSCRAPER_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}

	if concurrent := os.Getenv("XCSCRAPER_CONCURRENT_DOWNLOADS"); concurrent != "" {
		val, err := strconv.Atoi(concurrent)
		if err != nil {
			errs = append(errs, fmt.Errorf("XCSCRAPER_CONCURRENT_DOWNLOADS: %w", err))
		} else if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}

	if maxAttempts := os.Getenv("XCSCRAPER_MAX_ATTEMPTS"); maxAttempts != "" {
		val, err := strconv.Atoi(maxAttempts)
		if err != nil {
			errs = append(errs, fmt.Errorf("XCSCRAPER_MAX_ATTEMPTS: %w", err))
		} else if val > 0 {
			c.Retry.MaxAttempts = val
		}
	}

	if download := os.Getenv("XCSCRAPER_DOWNLOAD_AUDIO"); download != "" {
		c.Download.Enabled = strings.ToLower(download) == "true"
	}

	if notifEnabled := os.Getenv("XCSCRAPER_NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		c.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}

	if logLevel := os.Getenv("XCSCRAPER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("XCSCRAPER_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"xcscraper.yaml",
		"xcscraper.yml",
		".xcscraper.yaml",
		".xcscraper.yml",
		filepath.Join(home, ".config", "xcscraper", "config.yaml"),
		filepath.Join(home, ".config", "xcscraper", "config.yml"),
		filepath.Join(home, ".xcscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Provider
	if c.Provider.Endpoint == "" {
		errs = append(errs, errors.New("provider endpoint is required"))
	} else if u, err := url.Parse(c.Provider.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("provider endpoint %q is not an absolute URL", c.Provider.Endpoint))
	}
	if c.Provider.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	// Rate limiting
	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.RateLimit.BurstSize < 0 {
		errs = append(errs, errors.New("burst size cannot be negative"))
	}

	// Pacing
	if c.Pacing.PageMin < 0 || c.Pacing.PageMax < c.Pacing.PageMin {
		errs = append(errs, errors.New("page delay range is invalid"))
	}
	if c.Pacing.QueryMin < 0 || c.Pacing.QueryMax < c.Pacing.QueryMin {
		errs = append(errs, errors.New("query delay range is invalid"))
	}

	// Retry
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}
	if c.Retry.MaxAttempts > 10 {
		errs = append(errs, errors.New("max attempts should not exceed 10"))
	}
	if c.Retry.BaseDelay < 0 || (c.Retry.MaxDelay > 0 && c.Retry.MaxDelay < c.Retry.BaseDelay) {
		errs = append(errs, errors.New("retry delay range is invalid"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		errs = append(errs, errors.New("jitter factor must be between 0 and 1"))
	}

	// Download
	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 20 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 20"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.MaxFileSize < 0 {
		errs = append(errs, errors.New("max file size cannot be negative"))
	}

	// Output
	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.AudioDirectory == "" {
		errs = append(errs, errors.New("audio directory is required"))
	}

	// Logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, errors.New("invalid log format"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// AudioDir returns the directory assets are cached in
func (c *Config) AudioDir() string {
	if filepath.IsAbs(c.Output.AudioDirectory) {
		return c.Output.AudioDirectory
	}
	return filepath.Join(c.Output.BaseDirectory, c.Output.AudioDirectory)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if endpoint, ok := flags["endpoint"].(string); ok && endpoint != "" {
		c.Provider.Endpoint = endpoint
	}
	if apiKey, ok := flags["api-key"].(string); ok && apiKey != "" {
		c.Provider.APIKey = apiKey
	}
	if insecure, ok := flags["insecure"].(bool); ok {
		c.Provider.InsecureSkipVerify = insecure
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if concurrent, ok := flags["concurrent-downloads"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if maxAttempts, ok := flags["max-attempts"].(int); ok && maxAttempts > 0 {
		c.Retry.MaxAttempts = maxAttempts
	}
	if enabled, ok := flags["download-audio"].(bool); ok {
		c.Download.Enabled = enabled
	}
	if enabled, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = enabled
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".xcscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
