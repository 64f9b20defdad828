package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, _, err := bootstrap(cmd.Context()); err != nil {
				return err
			}
			slog.Info("schema is up to date")
			return nil
		},
	}
}
