package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/trainwatch-backend/internal/app"
)

const version = "0.3.0"

// bootstrap builds the application graph; swapped in tests.
var bootstrap = app.New

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "trainwatch",
		Short: "Trainwatch playback analytics backend",
		Long: `trainwatch ingests training-video playback events, keeps the trainee,
program and trainer views consistent, and serves struggle insights.
Running it without a subcommand starts the HTTP server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runServe,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newCatalogCommand())
	root.AddCommand(newInsightsCommand())
	root.AddCommand(newDriftCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the repair worker",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.Run(ctx)
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(_ context.Context, a *app.App) error {
				if err := a.Migrate(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

// withApp builds the graph without starting the server or background work.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
