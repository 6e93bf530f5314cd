package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chinmay4o/superlinks/internal/api"
	"github.com/chinmay4o/superlinks/internal/cache"
	"github.com/chinmay4o/superlinks/internal/cloud/providers"
	"github.com/chinmay4o/superlinks/internal/config"
	"github.com/chinmay4o/superlinks/internal/constants"
	"github.com/chinmay4o/superlinks/internal/events"
	"github.com/chinmay4o/superlinks/internal/logging"
	"github.com/chinmay4o/superlinks/internal/metrics"
	"github.com/chinmay4o/superlinks/internal/mutation"
	"github.com/chinmay4o/superlinks/internal/notify"
	"github.com/chinmay4o/superlinks/internal/services"
	"github.com/chinmay4o/superlinks/internal/session"
	"github.com/chinmay4o/superlinks/internal/transfer"
)

// loadConfig reads the environment and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.MergeWithFlags(token, tokenFile, apiBaseURL, maxConcurrent)
	return cfg, nil
}

// app wires the client core for one command run.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	bus       *events.EventBus
	session   *session.Store
	client    *api.Client
	cache     *cache.Cache
	policy    *cache.Policy
	engine    *mutation.Engine
	debouncer *mutation.Debouncer
	coord     *transfer.Coordinator
	notify    *notify.Notifier

	metricsSrv *http.Server
	cancel     context.CancelFunc
	errOut     io.Writer
}

// newApp builds the client core. Notifications go to errOut.
func newApp(ctx context.Context, errOut io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log := GetLogger()

	store := session.NewStore(cfg.Token, "", nil)
	client, err := api.NewClient(cfg, store, log.Named("api"))
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	overrides, err := config.LoadTTLOverrides(cfg.TTLPolicyFile)
	if err != nil {
		return nil, err
	}
	policy := cache.NewPolicy(overrides)

	ctx, cancel := context.WithCancel(ctx)
	bus := events.NewEventBus(constants.EventBusDefaultBuffer)

	c := cache.New(
		cache.WithDefaultTTL(policy.Default()),
		cache.WithEventBus(bus),
		cache.WithLogger(log.Named("cache")),
	)
	c.StartSweeper(ctx, cfg.CacheSweepInterval)

	transport, err := providers.NewTransport(ctx, cfg, client, log.Named("upload"))
	if err != nil {
		cancel()
		c.StopSweeper()
		return nil, err
	}
	coord := transfer.NewCoordinator(transport,
		transfer.WithMaxConcurrent(cfg.MaxConcurrent),
		transfer.WithTimeout(cfg.UploadTimeout),
		transfer.WithEventBus(bus),
		transfer.WithLogger(log.Named("coordinator")),
	)

	n := notify.NewNotifier(nil, errOut, log)
	go n.Run(ctx, bus)

	a := &app{
		cfg:       cfg,
		logger:    log,
		bus:       bus,
		session:   store,
		client:    client,
		cache:     c,
		policy:    policy,
		engine:    mutation.NewEngine(c, bus, log.Named("mutation")),
		debouncer: mutation.NewDebouncer(nil, cfg.DebounceWindow),
		coord:     coord,
		notify:    n,
		cancel:    cancel,
		errOut:    errOut,
	}
	if cfg.MetricsAddr != "" {
		if err := a.serveMetrics(cfg.MetricsAddr); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn().Err(err).Msg("Metrics server stopped")
		}
	}()
	a.logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return nil
}

func (a *app) deps() services.Deps {
	return services.Deps{
		Cache:     a.cache,
		Engine:    a.engine,
		Policy:    a.policy,
		Uploader:  a.coord,
		Debouncer: a.debouncer,
		Logger:    a.logger,
	}
}

func (a *app) bio() *services.BioService {
	return services.NewBioService(a.client, a.deps())
}

func (a *app) products() *services.ProductService {
	return services.NewProductService(a.client, a.deps())
}

func (a *app) purchases() *services.PurchaseService {
	return services.NewPurchaseService(a.client, a.deps())
}

// Close settles in-flight mutations, then stops uploads and background work.
func (a *app) Close() {
	// Debounced callbacks start mutations, so they finish before the engine
	// drains.
	a.debouncer.Stop()
	a.engine.Wait()
	a.coord.Close()
	a.cache.StopSweeper()
	if cacheStats {
		printCacheStats(a.errOut, a.cache.Stats())
	}
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = a.metricsSrv.Shutdown(ctx)
		cancel()
	}
	a.cancel()
	a.bus.Close()
}

func printCacheStats(w io.Writer, s cache.Stats) {
	lookups := s.Hits + s.Misses
	ratio := 0.0
	if lookups > 0 {
		ratio = float64(s.Hits) / float64(lookups) * 100
	}
	fmt.Fprintf(w, "Cache: %d entries, %s hits, %s misses (%.0f%% hit rate), %d expired, %d fetches\n",
		s.Entries, humanize.Comma(s.Hits), humanize.Comma(s.Misses), ratio, s.Expired, s.Fetches)
}

// withApp runs fn with a freshly wired core and closes it afterwards.
func withApp(errOut io.Writer, fn func(ctx context.Context, a *app) error) error {
	ctx := GetContext()
	a, err := newApp(ctx, errOut)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
