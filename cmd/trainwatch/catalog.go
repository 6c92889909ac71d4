package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/trainwatch-backend/internal/app"
)

func newCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the concept catalog",
	}
	cmd.AddCommand(newCatalogImportCommand())
	return cmd
}

func newCatalogImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Upsert concepts from a YAML or JSON seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.ImportCatalog(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d concepts from %s\n", n, args[0])
				return nil
			})
		},
	}
}
