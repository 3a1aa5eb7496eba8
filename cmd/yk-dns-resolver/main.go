package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/cache"
	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/config"
	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/resolver"
	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/server"
	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/wire"
)

var Version = "dev"

func main() {
	var (
		configPath = flag.String("config", "", "path to the resolver config file")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	zapCfg := zap.NewProductionConfig()
	if *debug {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapLog, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()

	if err := run(zapr.NewLogger(zapLog), *configPath); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(log logr.Logger, configPath string) error {
	setupLog := log.WithName("setup")
	setupLog.Info("starting yk-dns-resolver", "version", Version)

	cfg, err := config.Load(configPath)
	if err != nil {
		// Running without a config file is the common case; fall back to
		// defaults unless a path was given explicitly.
		if configPath != "" || os.Getenv("YK_DNS_RESOLVER_CONFIG") != "" {
			return fmt.Errorf("unable to load config: %w", err)
		}
		cfg = config.Default()
		setupLog.Info("no config file found, using defaults")
	}

	hints := config.DefaultRootHints()
	if cfg.RootHints != "" {
		if hints, err = config.LoadRootHints(cfg.RootHints); err != nil {
			return fmt.Errorf("unable to load root hints: %w", err)
		}
		setupLog.Info("loaded root hints", "path", cfg.RootHints)
	}

	recordCache := cache.New()
	recordCache.Insert(hints)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := server.NewMetrics(registry)

	upstream := metrics.InstrumentExchanger(&resolver.UDPExchanger{
		Port:    cfg.UpstreamPort,
		Timeout: time.Duration(cfg.UpstreamTimeout),
	})
	res := resolver.New(recordCache, upstream, log.WithName("resolver"))
	res.MaxSteps = cfg.MaxSteps

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prefetch(ctx, setupLog, res, cfg.PrefetchTLDs)

	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsListen, mux); err != nil {
				setupLog.Error(err, "metrics endpoint exited")
			}
		}()
		setupLog.Info("metrics endpoint up", "addr", cfg.MetricsListen)
	}

	conn, err := net.ListenPacket("udp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("unable to bind %s: %w", cfg.Listen, err)
	}

	return server.New(conn, res, log.WithName("server"), metrics).Serve(ctx)
}

// prefetch warms the cache with NS records for the configured TLDs. A failed
// prefetch only costs first-query latency later, so errors are logged and
// ignored.
func prefetch(ctx context.Context, log logr.Logger, res *resolver.Resolver, tlds []string) {
	for _, tld := range tlds {
		log.Info("prefetching TLD nameservers", "tld", tld)
		if _, _, err := res.Resolve(ctx, wire.TypeNS, tld, true); err != nil {
			log.Error(err, "prefetch failed", "tld", tld)
		}
	}
}
