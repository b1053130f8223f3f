package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"phenohub/internal/adapters/observability"
	redisad "phenohub/internal/adapters/redis"
	"phenohub/internal/app"
	"phenohub/internal/domain"
	"phenohub/internal/media"
	"phenohub/internal/shared"
	mysqlrepo "phenohub/internal/storage/mysql"
)

// runtime is what every subcommand works against.
type runtime struct {
	store domain.Store
	cache domain.Cache // nil when redis is unreachable
	close func()
}

type opener func(ctx context.Context, cfg shared.Config) (*runtime, error)

type cli struct {
	open opener
	cfg  shared.Config
	rt   *runtime
}

func (c *cli) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "phenohub-maint",
		Short:         "Offline maintenance for the PhenoHub catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.cfg = shared.Load()
			log.Logger = observability.NewLogger(c.cfg.AppEnv, c.cfg.LogLevel, "phenohub-maint")
			observability.Serve(c.cfg.MetricsAddr)

			rt, err := c.open(cmd.Context(), c.cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			c.rt = rt
			return nil
		},
	}
	root.AddCommand(c.recalcCmd(), c.purgeCmd())
	return root
}

func (c *cli) close() {
	if c.rt != nil && c.rt.close != nil {
		c.rt.close()
	}
}

func (c *cli) aggregator() *app.MetricsAggregator {
	opts := []app.AggregatorOption{
		app.WithWorkers(c.cfg.RecalcWorkers),
		app.WithWriteRate(c.cfg.RecalcWriteRPS),
	}
	if c.rt.cache != nil {
		opts = append(opts, app.WithCache(c.rt.cache))
	}
	return app.NewMetricsAggregator(c.rt.store, opts...)
}

func (c *cli) reports() *app.ReportService {
	return app.NewReportService(c.rt.store, c.aggregator(), media.Normalizer{Host: c.cfg.MediaHost})
}

// openLive requires a reachable database; redis is optional.
func openLive(ctx context.Context, cfg shared.Config) (*runtime, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := mysqlrepo.Open(pingCtx, cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}

	rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	var cache domain.Cache
	if err := rc.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; cached catalog pages expire on TTL only")
	} else {
		cache = rc
	}

	return &runtime{
		store: mysqlrepo.New(db),
		cache: cache,
		close: func() {
			_ = rc.Close()
			_ = db.Close()
		},
	}, nil
}
