package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sprintboard/internal/snapshot"
)

func snapshotCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Capture today's cumulative flow snapshot for every board",
		Long: `Capture today's column occupancy for every board that has no snapshot
for today yet. Run it from cron when the server is not running; boards
already captured today are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}
			s := snapshot.New(a.store, a.logger,
				snapshot.WithWorkers(a.cfg.Snapshot.Workers),
				snapshot.WithLocation(loc))
			res, err := s.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d boards, %d captured, %d already present, %d failed\n",
				res.Day, res.Boards, res.Captured, res.Skipped, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d boards failed", res.Failed)
			}
			return nil
		},
	}
}
