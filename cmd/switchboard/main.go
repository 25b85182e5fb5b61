package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/zen-systems/switchboard/pkg/cache"
	"github.com/zen-systems/switchboard/pkg/classify"
	"github.com/zen-systems/switchboard/pkg/config"
	"github.com/zen-systems/switchboard/pkg/logging"
	"github.com/zen-systems/switchboard/pkg/metrics"
	"github.com/zen-systems/switchboard/pkg/router"
	"go.uber.org/zap"
)

var (
	configFile  string
	aliasesFile string
	logLevel    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "switchboard",
		Short: "Health-aware router and fallback cascade for LLM backends",
		Long: `Switchboard classifies each chat request, ranks the configured LLM
backends by weight, health, latency and load, and tries them in order
until one answers.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default ~/.switchboard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&aliasesFile, "aliases", "", "path to a model aliases file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(backendsCmd())
	rootCmd.AddCommand(aliasesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the wired runtime shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	router   *router.Router
	closers  []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if aliasesFile != "" {
		if err := cfg.LoadAliases(aliasesFile); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	cat, err := cfg.Catalog(config.BuildOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, registry: reg}

	opts := []router.Option{
		router.WithLogger(logger),
		router.WithMetrics(m),
		router.WithRules(cfg.Rules),
		router.WithClassifier(classify.NewHeuristic(classify.WithKeywords(cfg.Classifier.Keywords))),
	}
	if store := a.openCache(ctx); store != nil {
		opts = append(opts, router.WithCache(store, time.Duration(cfg.Cache.TTL)*time.Second))
	}
	a.router = router.New(cat, opts...)

	for _, d := range cat.List() {
		if !d.Credentialed {
			logger.Info("backend not credentialed", zap.String("backend", d.ID), zap.String("key_env", d.KeyEnv))
		}
	}
	return a, nil
}

// openCache returns the configured store. An unreachable Redis falls back to
// the in-memory store.
func (a *app) openCache(ctx context.Context) cache.Store {
	if !a.cfg.Cache.Enabled {
		return nil
	}
	if a.cfg.Cache.RedisURL == "" {
		return cache.NewMemory()
	}
	store, err := cache.NewRedis(ctx, a.cfg.Cache.RedisURL)
	if err != nil {
		a.logger.Warn("redis cache unavailable, using memory", zap.Error(err))
		return cache.NewMemory()
	}
	a.closers = append(a.closers, store.Close)
	return store
}

// parseRules turns pattern=backend flags into rules.
func parseRules(flags []string) ([]classify.Rule, error) {
	var rules []classify.Rule
	for _, f := range flags {
		pattern, backend, ok := strings.Cut(f, "=")
		if !ok || pattern == "" || backend == "" {
			return nil, fmt.Errorf("invalid rule %q, want pattern=backend", f)
		}
		rules = append(rules, classify.Rule{Pattern: pattern, Backend: backend})
	}
	return rules, nil
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
