package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jocelyn-stericker/satie-sub004/internal/server"
	"github.com/jocelyn-stericker/satie-sub004/pkg/cache"
	"github.com/jocelyn-stericker/satie-sub004/pkg/observability"
	"github.com/jocelyn-stericker/satie-sub004/pkg/pipeline"
)

// serveKeyPrefix scopes server cache entries away from CLI entries when
// both share a redis instance.
const serveKeyPrefix = "serve:"

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the validate and layout pipeline over HTTP.

The cache backend ([cache] in the config: file, redis or none) and the score
store ([store]: memory, file or mongo) come from the configuration.
Prometheus metrics are exposed at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string, noCache bool) error {
	logger := c.Logger
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ch, err := newCache(ctx, cfg.Cache, noCache)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(ch, cache.NewScopedKeyer(nil, serveKeyPrefix), logger)
	defer runner.Close()

	st, err := newStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewPrometheus(reg)
	observability.SetPipelineHooks(metrics)
	observability.SetCacheHooks(metrics)
	observability.SetHTTPHooks(metrics)
	defer observability.Reset()

	opts, err := c.pipelineOptions()
	if err != nil {
		return err
	}
	opts.Logger = logger
	// The server must receive unvalidated options: requests override them.
	check := opts
	if err := check.ValidateAndSetDefaults(); err != nil {
		return fmt.Errorf("pipeline options: %w", err)
	}

	srv := server.New(runner, st, logger, server.Options{
		Pipeline: opts,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	logger.Info("starting server",
		"addr", addr,
		"cache", cfg.Cache.Backend,
		"store", cfg.Store.Backend,
		"merge", check.Merge,
		"workers", check.Workers)
	return srv.ListenAndServe(ctx, addr)
}
