package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crm-pipeline",
	Short: "Lead pipeline and activity ledger service",
	Long: `crm-pipeline serves the lead board, its lanes, and the append-only
activity and assignment ledgers over HTTP.

Configuration comes from the environment (a .env file is read when present).`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(templatesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
