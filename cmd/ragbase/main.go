package main

import (
	"fmt"
	"os"

	"github.com/loomworks/ragbase/internal/cli"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ragbase",
		Short: "Knowledge base ingestion and search",
		Long:  "ragbase ingests source documents into a vector-indexed knowledge base and serves semantic search over it",
	}

	rootCmd.AddCommand(cli.PopulateCmd())
	rootCmd.AddCommand(cli.SearchCmd())
	rootCmd.AddCommand(cli.ClearCmd())
	rootCmd.AddCommand(cli.StatsCmd())
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.MigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
