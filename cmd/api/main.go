package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/bakeshop-backend/api/controllers"
	"github.com/angelmondragon/bakeshop-backend/api/routes"
	"github.com/angelmondragon/bakeshop-backend/internal/cart"
	"github.com/angelmondragon/bakeshop-backend/internal/catalog"
	"github.com/angelmondragon/bakeshop-backend/internal/kit"
	"github.com/angelmondragon/bakeshop-backend/internal/notifications"
	"github.com/angelmondragon/bakeshop-backend/pkg/config"
	"github.com/angelmondragon/bakeshop-backend/pkg/db"
	"github.com/angelmondragon/bakeshop-backend/pkg/logger"
	"github.com/angelmondragon/bakeshop-backend/pkg/metrics"
	"github.com/angelmondragon/bakeshop-backend/pkg/migrate"
	"github.com/angelmondragon/bakeshop-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var (
		registerer prometheus.Registerer
		gatherer   prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		registerer, gatherer = registry, registry
	}
	pricingMetrics := metrics.NewPricingMetrics(registerer)

	health := map[string]controllers.Pinger{"database": dbClient}

	var snapshots cart.SnapshotRepository
	if cfg.Redis.Configured() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, cfg.Cart.KeyNamespace, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		snapshots = cart.NewRedisSnapshotRepository(redisClient, cfg.Cart.SnapshotTTL, redis.IsNil)
		health["redis"] = redisClient
	} else {
		logg.Warn(context.Background(), "redis not configured, carts are kept in memory")
		snapshots = cart.NewMemorySnapshotRepository()
	}

	sink := notifications.NewLogSink(logg)

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), logg, pricingMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Snapshots: snapshots,
		Catalog:   catalogService,
		Sink:      sink,
		Metrics:   pricingMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	kitService, err := kit.NewService(kit.ServiceParams{
		Registry: kit.NewRegistry(kit.RegistryConfig{
			MaxItems:    cfg.Kit.MaxItems,
			MaxSessions: cfg.Kit.MaxSessions,
			SessionTTL:  cfg.Kit.SessionTTL,
		}),
		Catalog:  catalogService,
		Carts:    cartService,
		Sink:     sink,
		Metrics:  pricingMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create kit service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"db_driver": cfg.DB.Driver,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:  cfg,
			Logger:  logg,
			Catalog: catalogService,
			Carts:   cartService,
			Kits:    kitService,
			Health:  health,
			Metrics: gatherer,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
