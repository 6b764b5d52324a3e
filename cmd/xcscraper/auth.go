package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"xcscraper/pkg/auth"
	"xcscraper/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the provider API key",
	Long: `Manage the xeno-canto API key.

Keys are stored using:
  - System keychain (when available)
  - Encrypted per-profile key files (AES-GCM, Argon2id key derivation)
XCSCRAPER_API_KEY, when set, takes precedence over stored keys.`,
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Store an API key",
	Long: `Store an API key for a profile. The key is read from the terminal
without echo, or from standard input when it is not a terminal.`,
	Example: `  xcscraper auth set-key
  echo "$KEY" | xcscraper auth set-key --profile work`,
	Args: cobra.NoArgs,
	RunE: runSetKey,
}

var showKeyCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored API keys (masked)",
	Args:  cobra.NoArgs,
	RunE:  runShowKey,
}

var deleteKeyCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove a stored API key",
	Args:  cobra.NoArgs,
	RunE:  runDeleteKey,
}

var authProfile string

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(setKeyCmd)
	authCmd.AddCommand(showKeyCmd)
	authCmd.AddCommand(deleteKeyCmd)

	authCmd.PersistentFlags().StringVar(&authProfile, "profile", auth.DefaultProfile, "credential profile")
}

func runSetKey(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	in := cmd.InOrStdin()
	interactive := false
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		interactive = true
		auth.ShowAPIKeyGuide(cmd.OutOrStdout())
		fmt.Fprint(cmd.OutOrStdout(), "API key: ")
	}

	key, err := readSecret(in, interactive)
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}

	if err := manager.Store(&auth.Credential{Profile: authProfile, APIKey: key}); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("API key stored for profile %q: %s", authProfile, auth.MaskKey(strings.TrimSpace(key))))
	return nil
}

// readSecret reads one line, without echo on a terminal
func readSecret(in io.Reader, interactive bool) (string, error) {
	if interactive {
		f := in.(*os.File)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runShowKey(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		ui.PrintWarning("No API keys stored")
		ui.PrintInfo("Add one with", "xcscraper auth set-key")
		return nil
	}

	for _, c := range creds {
		ui.PrintInfo(c.Profile, fmt.Sprintf("%s (updated %s)", auth.MaskKey(c.APIKey), c.LastModified.Format("2006-01-02 15:04")))
	}
	if os.Getenv(auth.APIKeyEnv) != "" {
		ui.PrintWarning(auth.APIKeyEnv + " is set and overrides stored keys")
	}
	return nil
}

func runDeleteKey(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(authProfile); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("API key removed for profile %q", authProfile))
	return nil
}
