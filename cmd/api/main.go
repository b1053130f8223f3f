package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "phenohub/internal/adapters/http_server"
	"phenohub/internal/adapters/observability"
	redisad "phenohub/internal/adapters/redis"
	"phenohub/internal/app"
	"phenohub/internal/domain"
	"phenohub/internal/media"
	"phenohub/internal/shared"
	mysqlrepo "phenohub/internal/storage/mysql"
	"phenohub/internal/storage/unavailable"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "phenohub-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, db := openStore(ctx, cfg.MySQLDSN)
	if db != nil {
		defer db.Close()
	}

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; serving uncached")
	}

	// the sample catalog must never land in a cache other instances read
	var catalogCache domain.Cache
	if store.Live() {
		catalogCache = cache
	}

	norm := media.Normalizer{Host: cfg.MediaHost}
	agg := app.NewMetricsAggregator(store,
		app.WithWorkers(cfg.RecalcWorkers),
		app.WithWriteRate(cfg.RecalcWriteRPS),
		app.WithCache(catalogCache),
	)
	q := app.NewQueryService(store, catalogCache, cfg.CacheTTL, norm)
	rs := app.NewReportService(store, agg, norm)

	// http
	srv := server.New(15 * time.Second)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Q:          q,
		R:          rs,
		Agg:        agg,
		AdminToken: cfg.AdminToken,
		Ready:      store.Live,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Bool("live_store", store.Live()).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// openStore picks the live MySQL store, or the unavailable store when no DSN
// is configured or the database does not answer.
func openStore(ctx context.Context, dsn string) (domain.Store, *sql.DB) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	db, err := mysqlrepo.Open(pingCtx, dsn)
	if err != nil {
		log.Warn().Err(err).Msg("database unavailable; serving sample catalog, writes disabled")
		return unavailable.New(), nil
	}
	log.Info().Msg("database connection ok")
	return mysqlrepo.New(db), db
}
