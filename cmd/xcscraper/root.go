package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"xcscraper/pkg/ui"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	noColor       bool
	notifications bool
	quiet         bool
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "xcscraper",
	Short: "Crawl xeno-canto search results into CSV metadata and audio files",
	Long: `xcscraper walks the paginated results of xeno-canto recording searches.

For every query it:
  - appends each recording's metadata to a per-query CSV file
  - downloads the audio into a shared cache, skipping files already present
  - checkpoints progress so an interrupted crawl can be resumed

Requests are rate limited, retried with exponential backoff, and paced with
randomized pauses between pages and between queries.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
		ui.SetQuiet(quiet)
		ui.SetColor(!noColor && isTerminal(os.Stdout))

		if cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./xcscraper.yaml or $HOME/.config/xcscraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show log output alongside progress")

	rootCmd.SetVersionTemplate(`xcscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags the user actually set
func globalFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("notifications") {
		flags["notifications"] = notifications
	}

	switch {
	case logLevel != "":
		flags["log-level"] = logLevel
	case quiet || !verbose:
		// Progress output owns the terminal unless logs are asked for
		flags["log-level"] = "error"
	}
	return flags
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
