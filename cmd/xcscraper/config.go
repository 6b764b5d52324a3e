package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"xcscraper/pkg/auth"
	"xcscraper/pkg/config"
	"xcscraper/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage xcscraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (XCSCRAPER_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created as 'xcscraper.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources.

The API key is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# xcscraper configuration
#
# Every option can also be set through XCSCRAPER_* environment variables,
# for example XCSCRAPER_OUTPUT_DIR or XCSCRAPER_API_KEY.

provider:
  # Recordings search endpoint
  endpoint: "https://xeno-canto.org/api/2/recordings"
  # API key, if the endpoint needs one. Prefer 'xcscraper auth set-key'.
  api_key: ""
  # User agents rotated per request. Empty uses the built-in list.
  user_agents: []
  request_timeout: "30s"
  insecure_skip_verify: false

rate_limit:
  requests_per_minute: 120
  burst_size: 5

# Randomized pauses between result pages and between queries
pacing:
  page_min: "3s"
  page_max: "8s"
  query_min: "10s"
  query_max: "20s"

# Page fetch retries. max_attempts counts the first try.
retry:
  max_attempts: 3
  base_delay: "1s"
  max_delay: "30s"
  multiplier: 2.0
  jitter_factor: 0.1

download:
  enabled: true
  concurrent_downloads: 5
  download_timeout: "2m"
  # Bytes, 0 means no limit
  max_file_size: 0

output:
  base_directory: "./xeno_canto_data"
  # Relative to base_directory unless absolute
  audio_directory: "audio"
  # Empty uses the platform data directory
  checkpoint_dir: ""

notifications:
  enabled: false
  on_complete: true
  on_error: true

logging:
  # debug, info, warn, error
  level: "info"
  # text or json
  format: "text"
  # Optional log file, always JSON lines
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "xcscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	ui.PrintInfo("Next", "run 'xcscraper config validate' and then 'xcscraper crawl <query>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	display := *cfg
	if display.Provider.APIKey != "" {
		display.Provider.APIKey = auth.MaskKey(display.Provider.APIKey)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		for _, candidate := range []string{"xcscraper.yaml", "xcscraper.yml", ".xcscraper.yaml", ".xcscraper.yml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return fmt.Errorf("no configuration file found, specify one with --config")
		}
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return fmt.Errorf("cannot create log directory: %w", err)
		}
	}
	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("  Output directory", cfg.Output.BaseDirectory)
	ui.PrintInfo("  Audio directory", cfg.AudioDir())
	ui.PrintInfo("  Concurrent downloads", fmt.Sprint(cfg.Download.ConcurrentDownloads))
	ui.PrintInfo("  Rate limit", fmt.Sprintf("%d requests/minute", cfg.RateLimit.RequestsPerMinute))
	ui.PrintInfo("  Page pause", fmt.Sprintf("%s to %s", cfg.Pacing.PageMin, cfg.Pacing.PageMax))
	ui.PrintInfo("  Max attempts", fmt.Sprint(cfg.Retry.MaxAttempts))
	return nil
}
