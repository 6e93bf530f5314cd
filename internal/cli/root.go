// Package cli provides the superlinks command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chinmay4o/superlinks/internal/logging"
	"github.com/chinmay4o/superlinks/internal/version"
)

var (
	// Global flags
	token         string
	tokenFile     string
	apiBaseURL    string
	maxConcurrent int
	verbose       bool
	debug         bool
	quiet         bool
	cacheStats    bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "superlinks",
		Short: "Superlinks - manage a creator storefront from the terminal",
		Long: `Superlinks ` + version.Version + ` - Built: ` + version.BuildTime + `
Manage your bio page, products and sales, and upload files.

Changes show up immediately and are saved in the background; a change the
server rejects is rolled back and reported.

Authentication:
  superlinks login            store a session token
  SUPERLINKS_TOKEN=...        or pass --token`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewLogger("cli")
			switch {
			case verbose || debug:
				logging.SetGlobalLevel(logging.ParseLevel("debug"))
			case quiet:
				logging.SetGlobalLevel(logging.ParseLevel("error"))
			case os.Getenv("SUPERLINKS_LOG_LEVEL") != "":
				logging.SetGlobalLevel(logging.ParseLevel(os.Getenv("SUPERLINKS_LOG_LEVEL")))
			default:
				logging.SetGlobalLevel(logging.ParseLevel("warn"))
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Session token (overrides all other sources)")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "Path to file containing the session token")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "API base URL (overrides SUPERLINKS_API_URL)")
	rootCmd.PersistentFlags().IntVarP(&maxConcurrent, "max-concurrent", "m", 0, "Maximum concurrent uploads (0 = configured default)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log errors")
	rootCmd.PersistentFlags().BoolVar(&cacheStats, "cache-stats", false, "Print response cache statistics before exiting")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(&cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate a shell completion script",
		Long: `Generate a shell completion script.

  bash:        source <(superlinks completion bash)
  zsh:         superlinks completion zsh > "${fpath[1]}/_superlinks"
  fish:        superlinks completion fish | source
  powershell:  superlinks completion powershell | Out-String | Invoke-Expression`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletion(out)
			}
			return fmt.Errorf("unsupported shell: %s", args[0])
		},
	})
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)
	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newBlocksCmd())
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newProductsCmd())
	rootCmd.AddCommand(newPurchasesCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewLogger("cli")
	}
	return logger
}

// GetContext returns the CLI context, cancelled on Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
