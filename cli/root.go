package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"content-unlock-service/config"
	"content-unlock-service/logging"
	"content-unlock-service/services"
	"content-unlock-service/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// RootOptions holds state shared by every subcommand.
type RootOptions struct {
	LogLevel string

	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "content-unlock",
		Short:         "Coin economy and content entitlement service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = opts.LogLevel
			}
			log, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSyncCatalogCommand(opts))
	cmd.AddCommand(NewGrantCommand(opts))

	return cmd
}

// openDB connects to Postgres with the zap-backed gorm logger.
func (o *RootOptions) openDB() (*gorm.DB, error) {
	if o.cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable not set")
	}
	db, err := gorm.Open(postgres.Open(o.cfg.DatabaseURL), &gorm.Config{
		Logger: logging.Gorm(o.log, 200*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// newEngine builds the engine, with presigned locators when R2 is configured.
func (o *RootOptions) newEngine(ctx context.Context, db *gorm.DB) (*services.Engine, *utils.R2, error) {
	var r2 *utils.R2
	var signer services.LocatorSigner
	if o.cfg.R2.Enabled() {
		var err error
		r2, err = utils.NewR2(ctx, o.cfg.R2)
		if err != nil {
			return nil, nil, err
		}
		signer = r2
	}
	engine := services.NewEngine(db, services.EngineOptions{
		StoreTimeout:  o.cfg.StoreTimeout,
		TxMaxAttempts: o.cfg.TxMaxAttempts,
		Policy: services.RewardPolicy{
			Threshold: o.cfg.RewardThreshold,
			Coins:     o.cfg.RewardCoins,
		},
		BotUsername: o.cfg.BotUsername,
		Signer:      signer,
		LocatorTTL:  o.cfg.LocatorTTL,
		Logger:      o.log,
	})
	return engine, r2, nil
}
