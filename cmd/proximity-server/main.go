package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/cache"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/cache/redisstore"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/config"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/httpclient"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/observability"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/server"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/geocode"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/logger"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/metrics"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/search"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/searchevents"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/shops"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	storeFlag := flag.String("store", "", "shop store: memory or postgres")
	flag.Parse()

	cfg := config.FromEnv()
	if *storeFlag != "" {
		cfg.ShopStore = strings.ToLower(strings.TrimSpace(*storeFlag))
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Service:   "bikeshop-proximity",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsEnabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.MetricsAddr,
			Path:    cfg.MetricsPath,
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		observability.Init(p.Registerer(), true)
		go func() {
			if err := p.Serve(ctx, appLog); err != nil {
				appLog.Error("metrics server exited", "err", err)
			}
		}()
	} else {
		observability.Init(nil, false)
	}
	observability.SetCacheBackend(cfg.Geocode.Cache)
	observability.ExposeBuildInfo(Version)

	appLog.Info("starting proximity server",
		"addr", cfg.Addr,
		"version", Version,
		"store", cfg.ShopStore,
		"geocode_cache", cfg.Geocode.Cache,
		"nominatim", cfg.Geocode.URL)

	store, closeStore, err := openStore(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("shop store setup failed", "err", err)
		return 1
	}
	defer closeStore()

	gcache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		appLog.Error("geocode cache setup failed", "err", err)
		return 1
	}
	defer closeCache()

	nominatim, err := geocode.NewNominatim(httpclient.NewOutbound(cfg.Geocode.Timeout), cfg.Geocode.URL, cfg.Geocode.UserAgent)
	if err != nil {
		appLog.Error("geocoder setup failed", "err", err)
		return 1
	}
	resolver := geocode.NewResolver(appLog, nominatim, gcache, geocode.WithTimeout(cfg.Geocode.Timeout))

	opts := []search.Option{search.WithDefaultMaxDistance(cfg.MaxDistanceKm)}
	if cfg.SearchEvents.Enabled {
		pub, err := searchevents.NewPublisher(appLog, cfg.SearchEvents.Brokers, cfg.SearchEvents.Topic, cfg.SearchEvents.QueueSize)
		if err != nil {
			appLog.Error("search events setup failed", "err", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("search events close", "err", err)
			}
		}()
		opts = append(opts, search.WithEvents(pub))
	}
	svc := search.NewService(appLog, store, resolver, opts...)

	if err := server.Run(ctx, cfg, appLog, svc, store); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (shops.Store, func(), error) {
	seed, err := shops.LoadCSVFile(log, cfg.ShopsCSV)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.ShopStore {
	case "", "memory":
		log.Info("memory shop store seeded", "shops", len(seed), "csv", cfg.ShopsCSV)
		return shops.NewMemory(seed...), func() {}, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("postgres store needs DATABASE_URL")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg, err := shops.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		n, err := pg.Count(ctx)
		if err != nil {
			pg.Close()
			return nil, nil, err
		}
		if n == 0 {
			for _, s := range seed {
				if _, err := pg.Insert(ctx, s); err != nil {
					pg.Close()
					return nil, nil, fmt.Errorf("seed shops: %w", err)
				}
			}
			log.Info("postgres shop store seeded", "shops", len(seed))
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown shop store %q", cfg.ShopStore)
	}
}

func openCache(ctx context.Context, cfg config.Config) (geocode.Cache, func(), error) {
	switch cfg.Geocode.Cache {
	case "", "memory":
		return cache.NewMemory(), func() {}, nil
	case "lru":
		c, err := cache.NewLRU(cfg.Geocode.CacheSize)
		if err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil
	case "redis":
		cli, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewRedis(cli, cfg.CacheOpTimeout), func() { _ = cli.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown geocode cache %q", cfg.Geocode.Cache)
	}
}
