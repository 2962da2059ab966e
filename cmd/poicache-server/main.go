// Command poicache-server is the shared remote tile cache: it serves read and
// write batches over a WebSocket and evicts tiles named by Kafka events.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/poi-tile-cache/internal/cache/redisstore"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/tileid"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/config"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/health"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/observability"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/server"
	"github.com/mohammed-shakir/poi-tile-cache/internal/logger"
	"github.com/mohammed-shakir/poi-tile-cache/internal/metrics"
	"github.com/mohammed-shakir/poi-tile-cache/internal/remotecache"
	"github.com/mohammed-shakir/poi-tile-cache/pkg/invalidation/kafka"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg, cfgErr := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Cache:     cfg.CacheName,
		Component: "poicache-server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	if cfgErr != nil {
		appLog.Error("invalid configuration", "err", cfgErr)
		return 1
	}
	warnings, err := cfg.Validate()
	if err != nil {
		appLog.Error("invalid configuration", "err", err)
		return 1
	}
	for _, w := range warnings {
		appLog.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.SetCacheName(cfg.CacheName)
	routes := server.Routes{Ready: map[string]health.Pinger{}}
	var prov *metrics.Provider
	if cfg.Metrics.Enabled {
		prov, err = metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.Metrics.Addr,
			Path:    cfg.Metrics.Path,
			Build: metrics.BuildInfo{
				Version:   os.Getenv("BUILD_VERSION"),
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		if err != nil {
			appLog.Error("metrics setup failed", "err", err)
			return 1
		}
		observability.ExposeBuildInfo(Version)
		routes.Metrics = prov.Handler()
		if a := cfg.Metrics.Addr; a != "" && a != cfg.Addr {
			go func() {
				if err := prov.Serve(ctx, appLog); err != nil {
					appLog.Error("metrics server exited", "err", err)
				}
			}()
		}
	}

	cli, err := redisstore.New(ctx, cfg.RedisAddr,
		redisstore.WithReadTimeout(cfg.CacheOpTimeout),
		redisstore.WithWriteTimeout(cfg.CacheOpTimeout),
	)
	if err != nil {
		appLog.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
		return 1
	}
	defer func() { _ = cli.Close() }()
	routes.Ready["redis"] = cli

	store := remotecache.NewStore(cli, envOr("REMOTE_PREFIX", "poiremote:"))
	routes.WebSocket = remotecache.NewHandler(store, appLog.With("component", "remotecache"))

	invCfg := kafka.FromEnv()
	runner := kafka.New(invCfg, store, kafka.Options{
		Logger:  appLog.With("component", "invalidation"),
		Encoder: tileid.Encoder{},
		MinZoom: cfg.MinZoom,
	})
	if err := runner.Start(ctx); err != nil {
		appLog.Error("invalidation runner failed to start", "err", err)
		return 1
	}
	defer runner.Stop()
	if runner.Enabled() {
		routes.Ready["kafka"] = runner
	}

	appLog.Info("starting poicache-server",
		"addr", cfg.Addr,
		"version", Version,
		"redis", cfg.RedisAddr,
		"min_zoom", cfg.MinZoom,
		"max_zoom", cfg.MaxZoom,
		"invalidation", runner.Enabled())

	if err := server.Run(ctx, cfg.Addr, appLog, server.NewRouter(appLog, routes)); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
