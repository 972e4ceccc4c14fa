package cli

import (
	"context"
	"fmt"

	"github.com/loomworks/ragbase/internal/config"
	"github.com/loomworks/ragbase/internal/repository"
	"github.com/spf13/cobra"
)

// StatsCmd returns the stats command
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base entry counts",
		RunE:  runStats,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := connectPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := repository.NewKnowledgeRepository(pool)

	total, err := repo.Count(ctx)
	if err != nil {
		return err
	}

	counts, err := repo.CountByContentType(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "total: %d entries\n", total)
	for _, tc := range counts {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", tc.ContentType, tc.Count)
	}
	return nil
}
