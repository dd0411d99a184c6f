package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"content-unlock-service/handlers"
	"content-unlock-service/middleware"
	"content-unlock-service/services"
	"content-unlock-service/workers"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewServeCommand(opts *RootOptions) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the catalog mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not auto-migrate tables on startup")
	return cmd
}

func runServe(ctx context.Context, opts *RootOptions, skipMigrate bool) error {
	log := opts.log
	if opts.cfg.GatewayToken == "" {
		return errors.New("GATEWAY_TOKEN is not set, the front-end cannot be authenticated")
	}

	db, err := opts.openDB()
	if err != nil {
		return err
	}
	if !skipMigrate {
		if err := services.AutoMigrate(db); err != nil {
			return err
		}
	}

	engine, r2, err := opts.newEngine(ctx, db)
	if err != nil {
		return err
	}

	if r2 != nil {
		syncer := workers.NewCatalogSyncer(db, r2, opts.cfg.CatalogManifestKey, log)
		sched, err := workers.StartCatalogScheduler(syncer, opts.cfg.CatalogSyncInterval)
		if err != nil {
			return err
		}
		defer func(s gocron.Scheduler) { _ = s.Shutdown() }(sched)
		log.Info("✅ catalog mirror scheduled", zap.Duration("every", opts.cfg.CatalogSyncInterval))
	} else {
		log.Warn("⚠️  R2 not configured; catalog mirror disabled, locators returned verbatim")
	}

	limiter := middleware.NewRateLimiter(opts.cfg.RateLimitRPS, opts.cfg.RateLimitBurst)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				limiter.Cleanup(now)
			}
		}
	}()

	app := handlers.NewApp(engine, handlers.AppOptions{
		GatewayToken:   opts.cfg.GatewayToken,
		AllowedOrigins: opts.cfg.AllowedOrigins,
		Limiter:        limiter,
		Log:            log,
	})

	go func() {
		if err := app.Listen(opts.cfg.ListenAddr); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()
	log.Info("✅ server running", zap.String("addr", opts.cfg.ListenAddr))

	<-ctx.Done()
	log.Info("shutting down server...")
	return app.ShutdownWithTimeout(10 * time.Second)
}
