package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yungbote/trainwatch-backend/internal/app"
)

func newDriftCommand() *cobra.Command {
	var (
		traineeID string
		sessionID string
		repair    bool
	)
	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare a trainee session against the program and trainer views",
		Long: `drift diffs the event ids of one trainee session against the program and
trainer views. With --repair every missing event is queued for replay.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("trainee", traineeID); err != nil {
				return err
			}
			if err := requireFlag("session", sessionID); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if !repair {
					report, err := a.Services.Drift.Check(ctx, traineeID, sessionID)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), map[string]any{"drift": report, "clean": report.Clean()})
				}
				report, scheduled, err := a.Services.Drift.Repair(ctx, traineeID, sessionID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"drift": report, "scheduled": scheduled})
			})
		},
	}
	cmd.Flags().StringVarP(&traineeID, "trainee", "t", "", "trainee id")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "training session id")
	cmd.Flags().BoolVar(&repair, "repair", false, "queue missing events for replay")
	return cmd
}
