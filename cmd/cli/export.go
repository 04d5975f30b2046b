package main

import (
	"encoding/json"

	"github.com/akeren/waitlist-api/config"
	"github.com/akeren/waitlist-api/domain/waitlist"
	"github.com/akeren/waitlist-api/internal/log"
	"github.com/spf13/cobra"
)

func newExportCmd(logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print every waitlist entry with its position as JSON",
		Long:  "Reads from the store the server would use: the hosted database when it is configured and reachable, the fallback file otherwise.",
		RunE: func(cmd *cobra.Command, args []string) error {
			waitlistCfg, err := config.LoadWaitlistConfig()
			if err != nil {
				return err
			}

			db, err := config.ConnectHostedDatabase(cmd.Context(), logger, waitlistCfg)
			if err != nil {
				return err
			}
			defer config.CloseDatabase(db, logger)

			store, err := waitlist.OpenStore(db, waitlistCfg, nil, logger)
			if err != nil {
				return err
			}

			service := waitlist.NewWaitlistService(logger, store.Repository, nil, 0, nil)

			entries, err := service.Export(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		},
	}
}
