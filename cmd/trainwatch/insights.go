package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/trainwatch-backend/internal/app"
)

func newInsightsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Print struggle insights for a program",
	}
	cmd.AddCommand(newInsightsConceptsCommand())
	cmd.AddCommand(newInsightsClustersCommand())
	return cmd
}

func newInsightsConceptsCommand() *cobra.Command {
	var programID string
	cmd := &cobra.Command{
		Use:   "concepts",
		Short: "Per-concept struggle scores, highest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("program", programID); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out, err := a.Services.Insights.ConceptInsights(ctx, programID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"programId": programID, "concepts": out})
			})
		},
	}
	cmd.Flags().StringVarP(&programID, "program", "p", "", "training program id")
	return cmd
}

func newInsightsClustersCommand() *cobra.Command {
	var programID string
	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Per-cluster engagement and problem concepts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("program", programID); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out, err := a.Services.Insights.ClusterInsights(ctx, programID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"programId": programID, "clusters": out})
			})
		},
	}
	cmd.Flags().StringVarP(&programID, "program", "p", "", "training program id")
	return cmd
}

func requireFlag(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}
