package main

import (
	"context"
	"fmt"
	"time"

	"github.com/akeren/waitlist-api/config"
	"github.com/akeren/waitlist-api/internal/log"
	embedded "github.com/akeren/waitlist-api/migrations"
	"github.com/akeren/waitlist-api/pkg/migrations"
	"github.com/akeren/waitlist-api/pkg/utils"
	"github.com/spf13/cobra"
)

func newMigrateCmd(logger *log.Logger) *cobra.Command {
	var (
		dir     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to the hosted database",
		Long: "Applies the migrations embedded in the binary, or those in --dir when given, " +
			"to the database named by APP_DATABASE_URL or POSTGRES_*.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			db, err := config.NewDatabase(ctx, logger, config.DefaultDBConfig())
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer config.CloseDatabase(db, logger)

			sqlDB, err := db.DB()
			if err != nil {
				return fmt.Errorf("sql handle: %w", err)
			}

			migrationCfg := migrations.Config{Dir: dir, Logger: logger}
			if dir == "" {
				migrationCfg.FS = embedded.FS
			}

			if err := migrations.Up(ctx, sqlDB, migrationCfg); err != nil {
				return err
			}

			logger.Info("Database migrations completed")
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", utils.GetEnvTrimmedOrDefault("MIGRATIONS_DIR", ""), "directory of *.sql migrations (default: embedded)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall migration timeout")

	return cmd
}
