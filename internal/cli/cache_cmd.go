package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chinmay4o/superlinks/internal/api"
	"github.com/chinmay4o/superlinks/internal/cache"
	"github.com/chinmay4o/superlinks/internal/config"
)

// newCacheCmd creates the 'cache' command group.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the response cache",
		Long: `Commands for the in-memory response cache.

Reads go through a TTL cache so repeated lookups within one run do not hit
the server. TTLs come from a built-in table that SUPERLINKS_TTL_POLICY can
override with a YAML file:

  default: 2m
  classes:
    purchases: 15s
    public: 30m`,
	}
	cmd.AddCommand(newCachePolicyCmd())
	cmd.AddCommand(newCacheWarmCmd())
	return cmd
}

func printPolicy(w io.Writer, p *cache.Policy) {
	classes := p.Classes()
	names := make([]string, 0, len(classes))
	for c := range classes {
		names = append(names, string(c))
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Cache TTL Policy")
	fmt.Fprintln(w, "================")
	fmt.Fprintf(w, "  %-10s %s\n", "default", p.Default())
	for _, n := range names {
		fmt.Fprintf(w, "  %-10s %s\n", n, classes[cache.Class(n)])
	}
}

func newCachePolicyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Show the TTL of each resource class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			overrides, err := config.LoadTTLOverrides(cfg.TTLPolicyFile)
			if err != nil {
				return err
			}
			if cfg.TTLPolicyFile != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Overrides: %s\n\n", cfg.TTLPolicyFile)
			}
			printPolicy(cmd.OutOrStdout(), cache.NewPolicy(overrides))
			return nil
		},
	}
}

func newCacheWarmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Load every listing twice and report cache behavior",
		Long: `Fetch blocks, profile, products and purchases concurrently, then fetch
them again. The second round is served from the cache; the statistics show
hits, misses and how many requests reached the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				for round := 1; round <= 2; round++ {
					start := time.Now()
					if err := warmOnce(ctx, a); err != nil {
						return err
					}
					fmt.Fprintf(out, "Round %d: %s\n", round, time.Since(start).Round(time.Millisecond))
				}
				printCacheStats(out, a.cache.Stats())
				return nil
			})
		},
	}
}

func warmOnce(ctx context.Context, a *app) error {
	bio, products, purchases := a.bio(), a.products(), a.purchases()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { _, err := bio.LoadBlocks(ctx); return err })
	g.Go(func() error { _, err := bio.LoadProfile(ctx); return err })
	g.Go(func() error { _, err := products.List(ctx); return err })
	g.Go(func() error { _, err := purchases.List(ctx, api.PurchaseFilter{}); return err })
	return g.Wait()
}
