package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"xcscraper/pkg/auth"
	"xcscraper/pkg/config"
	"xcscraper/pkg/logger"
	"xcscraper/pkg/scraper"
	"xcscraper/pkg/ui"
	"xcscraper/pkg/xenocanto"
)

var (
	maxPages   int
	noAudio    bool
	outputDir  string
	concurrent int
	rateLimit  int
	resume     bool
	endpoint   string
	profile    string
)

// newCredentialManager is swapped out in tests
var newCredentialManager = auth.NewManager

var crawlCmd = &cobra.Command{
	Use:   "crawl <query>...",
	Short: "Crawl one or more xeno-canto search queries",
	Long: `Crawl every result page of each query in turn.

Metadata is appended to <output>/metadata_<query>.csv and audio is cached in
<output>/audio/{id}_{genus}_{species}.{ext}. Files that already exist are not
downloaded again, so re-running a crawl only fetches what is missing.

The provider API key, if one is needed, is read from provider.api_key,
XCSCRAPER_API_KEY or the credential store ('xcscraper auth set-key').`,
	Example: `  # Crawl a species with default settings
  xcscraper crawl "Turdus merula"

  # Several queries, metadata only, first three pages each
  xcscraper crawl "Parus major" "cnt:Norway" --no-audio --max-pages 3

  # Resume an interrupted crawl into a custom directory
  xcscraper crawl "Erithacus rubecula" --output ./birds --resume`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum pages to crawl per query in this run, counted from the resume point with --resume (0 = all)")
	crawlCmd.Flags().BoolVar(&noAudio, "no-audio", false, "write metadata only, skip audio downloads")
	crawlCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default ./xeno_canto_data)")
	crawlCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads")
	crawlCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "requests per minute")
	crawlCmd.Flags().BoolVar(&resume, "resume", false, "resume each query from its last checkpoint")
	crawlCmd.Flags().StringVar(&endpoint, "endpoint", "", "recordings API endpoint")
	crawlCmd.Flags().StringVar(&profile, "profile", auth.DefaultProfile, "credential profile holding the API key")
}

func crawlFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags(cmd)
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if concurrent > 0 {
		flags["concurrent-downloads"] = concurrent
	}
	if rateLimit > 0 {
		flags["requests-per-minute"] = rateLimit
	}
	if endpoint != "" {
		flags["endpoint"] = endpoint
	}
	if noAudio {
		flags["download-audio"] = false
	}
	return flags
}

func runCrawl(cmd *cobra.Command, args []string) error {
	queries := make([]string, 0, len(args))
	for _, q := range args {
		if q = xenocanto.NormalizeQuery(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return fmt.Errorf("at least one non-empty query is required")
	}
	if maxPages < 0 {
		return fmt.Errorf("--max-pages must not be negative")
	}

	cfg, err := config.Load(configFile, crawlFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("xcscraper starting")

	apiKey := resolveAPIKey(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, err := scraper.New(cfg, apiKey, log)
	if err != nil {
		return fmt.Errorf("failed to initialize crawler: %w", err)
	}

	display := ui.NewProgressDisplay(ui.NewNotifier(cfg.Notifications), verbose)
	controller.SetObserver(display)

	ui.PrintInfo("Queries", strings.Join(queries, ", "))
	ui.PrintInfo("Output", cfg.Output.BaseDirectory)

	reports := controller.CrawlQueries(ctx, queries, scraper.Options{
		MaxPages:      maxPages,
		DownloadAudio: cfg.Download.Enabled,
		Resume:        resume,
	})
	if len(reports) > 1 {
		display.PrintSummary()
	}

	return crawlError(queries, reports)
}

// resolveAPIKey prefers the configured key and falls back to the credential
// store. A missing key is not an error.
func resolveAPIKey(cfg *config.Config, log logger.Logger) string {
	if cfg.Provider.APIKey != "" {
		return cfg.Provider.APIKey
	}

	manager, err := newCredentialManager()
	if err != nil {
		log.WithError(err).Debug("Credential store unavailable")
		return ""
	}
	key, err := manager.APIKey(profile)
	if err != nil {
		log.WithField("profile", profile).Debug("No stored API key")
		return ""
	}
	log.WithField("profile", profile).Info("Using stored API key")
	return key
}

func crawlError(queries []string, reports []scraper.Report) error {
	var failed []string
	for _, r := range reports {
		switch r.Reason {
		case scraper.ReasonInterrupted:
			return fmt.Errorf("crawl interrupted during %q", r.Query)
		case scraper.ReasonFetchError:
			failed = append(failed, r.Query)
		}
	}
	if len(reports) < len(queries) {
		return fmt.Errorf("crawl interrupted after %d of %d queries", len(reports), len(queries))
	}
	if len(failed) > 0 {
		return fmt.Errorf("fetch failed for %d of %d queries: %s", len(failed), len(queries), strings.Join(failed, ", "))
	}
	return nil
}
