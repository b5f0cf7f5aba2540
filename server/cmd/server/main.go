package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/regionpulse/regionpulse/server/internal/api"
	"github.com/regionpulse/regionpulse/server/internal/config"
	"github.com/regionpulse/regionpulse/server/internal/dataset"
	"github.com/regionpulse/regionpulse/server/internal/metrics"
	"github.com/regionpulse/regionpulse/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("regionpulse-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Log.SlogLevel())

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"dataset", cfg.Dataset.Path,
		"default_threshold_ms", cfg.Aggregator.DefaultThresholdMs,
		"rate_limit_rps", cfg.Server.RateLimit.RequestsPerSecond,
		"stream", cfg.Server.Stream.IsEnabled(),
		"log_level", cfg.Log.Level,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, cfg, level); err != nil {
		slog.Error("regionpulse-server stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("regionpulse-server stopped")
}

// run serves the API until ctx is cancelled. The HTTP listener comes up
// before the dataset is loaded; queries answer 503 until SetDataset.
func run(ctx context.Context, configPath string, cfg *config.Config, level *slog.LevelVar) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	h := api.New(api.Options{
		DefaultThresholdMs: cfg.Aggregator.DefaultThresholdMs,
		Metrics:            m,
		AllowedOrigins:     cfg.Server.CORS.AllowedOrigins,
		RateLimit:          cfg.Server.RateLimit.RequestsPerSecond,
		Burst:              cfg.Server.RateLimit.EffectiveBurst(),
	})
	h.Handle("/metrics", metrics.Handler(reg))

	var hub *ws.Hub
	if cfg.Server.Stream.IsEnabled() {
		hub = ws.New(h)
		h.Handle("/ws/latency", hub)
	}

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("regionpulse-server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		st := loadDataset(gctx, cfg.Dataset)
		h.SetDataset(st)
		m.SetDataset(st.Len(), len(st.Regions()))
		return nil
	})

	if hub != nil {
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		err := config.Watch(gctx, configPath, func(next *config.Config) {
			applyReload(cfg, next, level, h)
		})
		if err != nil {
			// Hot reload is optional; the server keeps its startup config.
			slog.Warn("config: hot reload disabled", "err", err)
		}
		return nil
	})

	return g.Wait()
}

// loadDataset loads the configured dataset. A failed or empty load yields an
// empty store so queries answer "dataset unavailable" instead of crashing.
func loadDataset(ctx context.Context, dc config.DatasetConfig) *dataset.Store {
	st, err := dataset.Load(ctx, dataset.Source{
		Path:     dc.Path,
		Format:   dc.Format,
		Attempts: dc.FetchAttempts,
		Timeout:  dc.FetchTimeout,
	})
	if err != nil {
		slog.Error("dataset: load failed, serving without data", "path", dc.Path, "err", err)
		return dataset.Empty(dc.Path)
	}
	if st.Empty() {
		slog.Warn("dataset: no records, serving without data", "source", st.Source())
		return st
	}
	slog.Info("dataset: ready", "source", st.Source(), "records", st.Len(), "regions", len(st.Regions()))
	return st
}

// applyReload applies the settings that can change at runtime and warns
// about the ones that need a restart.
func applyReload(cur, next *config.Config, level *slog.LevelVar, h *api.Handler) {
	level.Set(next.Log.SlogLevel())
	h.SetDefaultThreshold(next.Aggregator.DefaultThresholdMs)
	slog.Info("config: applied",
		"log_level", next.Log.Level,
		"default_threshold_ms", next.Aggregator.DefaultThresholdMs,
	)

	if changed := restartRequired(cur, next); len(changed) > 0 {
		slog.Warn("config: settings changed but not applied, restart to apply",
			"settings", changed)
	}
}

// restartRequired lists the settings that differ between cur and next and
// only take effect at startup.
func restartRequired(cur, next *config.Config) []string {
	var changed []string
	add := func(name string, differs bool) {
		if differs {
			changed = append(changed, name)
		}
	}

	cs, ns := cur.Server, next.Server
	add("server.http_port", cs.HTTPPort != ns.HTTPPort)
	add("server.read_timeout", cs.ReadTimeout != ns.ReadTimeout)
	add("server.write_timeout", cs.WriteTimeout != ns.WriteTimeout)
	add("server.shutdown_timeout", cs.ShutdownTimeout != ns.ShutdownTimeout)
	add("server.cors.allowed_origins", !slices.Equal(cs.CORS.AllowedOrigins, ns.CORS.AllowedOrigins))
	add("server.rate_limit", cs.RateLimit != ns.RateLimit)
	add("server.stream.enabled", cs.Stream.IsEnabled() != ns.Stream.IsEnabled())
	add("dataset", cur.Dataset != next.Dataset)
	return changed
}
