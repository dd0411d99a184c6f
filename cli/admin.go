package cli

import (
	"fmt"

	"content-unlock-service/services"
	"content-unlock-service/workers"

	"github.com/spf13/cobra"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			if err := services.AutoMigrate(db); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func NewSyncCatalogCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-catalog",
		Short: "Mirror the catalog manifest from R2 once",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			_, r2, err := opts.newEngine(cmd.Context(), db)
			if err != nil {
				return err
			}
			if r2 == nil {
				return fmt.Errorf("R2 is not configured (R2_BUCKET_NAME, R2_ACCOUNT_ID)")
			}
			n, err := workers.NewCatalogSyncer(db, r2, opts.cfg.CatalogManifestKey, opts.log).Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mirrored %d catalog item(s)\n", n)
			return nil
		},
	}
}

func NewGrantCommand(opts *RootOptions) *cobra.Command {
	var (
		userID int64
		amount int64
		note   string
	)
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Credit coins to a user (recharge)",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			engine, _, err := opts.newEngine(cmd.Context(), db)
			if err != nil {
				return err
			}
			balance, err := engine.Grant(cmd.Context(), userID, amount, note)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d balance: %d\n", userID, balance)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().Int64Var(&amount, "amount", 0, "coins to credit")
	cmd.Flags().StringVar(&note, "note", "cli", "ledger reference")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
