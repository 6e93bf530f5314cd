package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chinmay4o/superlinks/internal/config"
	"github.com/chinmay4o/superlinks/internal/session"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect superlinks configuration",
		Long: `Configuration commands for superlinks.

Settings come from SUPERLINKS_* environment variables; --token, --token-file,
--api-url and --max-concurrent override them.

Commands:
  show      - Display current configuration
  validate  - Check the configuration without contacting the server
  path      - Show the session token file path`,
	}

	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigValidateCmd())
	configCmd.AddCommand(newConfigPathCmd())
	return configCmd
}

func secret(v string) string {
	if v == "" {
		return "<not set>"
	}
	return session.Mask(v)
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Current Configuration")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "API Settings:")
	fmt.Fprintf(w, "  API Base URL: %s\n", cfg.APIBaseURL)
	fmt.Fprintf(w, "  Token:        %s\n", secret(cfg.Token))
	fmt.Fprintf(w, "  Retry GETs:   %d\n", cfg.APIRetryMax)
	if cfg.APIRate > 0 {
		fmt.Fprintf(w, "  Pacing:       %g/s (burst %d)\n", cfg.APIRate, cfg.APIBurst)
	} else {
		fmt.Fprintln(w, "  Pacing:       off")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Upload Settings:")
	fmt.Fprintf(w, "  Backend:        %s\n", cfg.UploadBackend)
	fmt.Fprintf(w, "  Max Concurrent: %d\n", cfg.MaxConcurrent)
	fmt.Fprintf(w, "  Timeout:        %s\n", cfg.UploadTimeout)
	switch cfg.UploadBackend {
	case config.BackendS3:
		fmt.Fprintf(w, "  S3 Bucket:      %s (%s)\n", cfg.S3Bucket, cfg.S3Region)
		if cfg.S3Endpoint != "" {
			fmt.Fprintf(w, "  S3 Endpoint:    %s\n", cfg.S3Endpoint)
		}
		fmt.Fprintf(w, "  Access Key:     %s\n", secret(cfg.S3AccessKeyID))
		fmt.Fprintf(w, "  Secret Key:     %s\n", secret(cfg.S3SecretKey))
	case config.BackendAzure:
		fmt.Fprintf(w, "  Azure Account:  %s\n", cfg.AzureAccount)
		fmt.Fprintf(w, "  Container:      %s\n", cfg.AzureContainer)
		fmt.Fprintf(w, "  SAS Token:      %s\n", secret(cfg.AzureSASToken))
	}
	if cfg.UploadBackend != config.BackendAPI {
		fmt.Fprintf(w, "  Object Prefix:  %s\n", cfg.ObjectPrefix)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Cache and Mutations:")
	fmt.Fprintf(w, "  Sweep Interval:  %s\n", cfg.CacheSweepInterval)
	if cfg.TTLPolicyFile != "" {
		fmt.Fprintf(w, "  TTL Policy:      %s\n", cfg.TTLPolicyFile)
	}
	fmt.Fprintf(w, "  Debounce Window: %s\n", cfg.DebounceWindow)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Proxy Settings:")
	fmt.Fprintf(w, "  Proxy Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(w, "  Proxy Host: %s\n", cfg.ProxyHost)
		fmt.Fprintf(w, "  Proxy Port: %d\n", cfg.ProxyPort)
	}
	if cfg.ProxyUser != "" {
		fmt.Fprintf(w, "  Proxy User: %s\n", cfg.ProxyUser)
		fmt.Fprintf(w, "  Password:   %s\n", secret(cfg.ProxyPassword))
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Metrics: http://%s/metrics\n", cfg.MetricsAddr)
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the merged configuration. Secrets are masked.

Priority: flags > environment > token files > defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if _, err := config.LoadTTLOverrides(cfg.TTLPolicyFile); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "✓ Configuration is valid")
			if cfg.Token == "" {
				fmt.Fprintln(out, "  Note: no session token set; run 'superlinks login'")
			}
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the session token file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetDefaultTokenPath())
			return nil
		},
	}
}
