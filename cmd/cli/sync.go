package main

import (
	"encoding/json"
	"fmt"

	"github.com/akeren/waitlist-api/config"
	"github.com/akeren/waitlist-api/domain/waitlist"
	"github.com/akeren/waitlist-api/internal/log"
	"github.com/spf13/cobra"
)

func newSyncCmd(logger *log.Logger) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay fallback-file signups into the hosted database",
		Long: "Copies every entry of the fallback file into the hosted store, keeping its original " +
			"signup time. Emails already present in the hosted store are skipped, so the command can be rerun.",
		RunE: func(cmd *cobra.Command, args []string) error {
			waitlistCfg, err := config.LoadWaitlistConfig()
			if err != nil {
				return err
			}
			if path != "" {
				waitlistCfg.FilePath = path
			}

			if ok, reason := config.HostedDatabaseConfigured(); !ok {
				return fmt.Errorf("hosted store not configured: %s", reason)
			}

			db, err := config.NewDatabase(cmd.Context(), logger, config.DefaultDBConfig())
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer config.CloseDatabase(db, logger)

			file, err := waitlist.OpenFileRepository(waitlistCfg.FilePath, logger)
			if err != nil {
				return err
			}

			report, err := waitlist.SyncFileToHosted(cmd.Context(), file, waitlist.NewHostedRepository(db), logger)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "fallback file to replay (default: WAITLIST_FILE)")

	return cmd
}
