package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/loomworks/ragbase/internal/config"
	"github.com/loomworks/ragbase/internal/repository"
	"github.com/loomworks/ragbase/internal/service"
	"github.com/spf13/cobra"
)

// PopulateCmd returns the populate command
func PopulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Ingest source items into the knowledge base",
		Long: "Load source items, embed them and upsert them into the knowledge base.\n" +
			"By default only items absent from the store are ingested, so re-running is idempotent.",
		RunE: runPopulate,
	}

	cmd.Flags().Bool("force-refresh", false, "Re-embed and update entries that already exist")
	cmd.Flags().Bool("clear-first", false, "Delete all entries before ingesting")
	cmd.Flags().StringP("source", "s", "", "Source directory (defaults to RAGBASE_SOURCE_DIR)")
	cmd.Flags().String("pattern", "", "Glob pattern for source files (defaults to RAGBASE_SOURCE_PATTERN)")
	cmd.Flags().Bool("from-s3", false, "Read source items from the configured S3 bucket")
	cmd.Flags().IntP("workers", "w", 0, "Concurrent embedding workers (defaults to RAGBASE_INGEST_WORKERS)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations")

	return cmd
}

func runPopulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := initTelemetry()
	defer shutdownTelemetry()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	forceRefresh, _ := cmd.Flags().GetBool("force-refresh")
	clearFirst, _ := cmd.Flags().GetBool("clear-first")
	sourceDir, _ := cmd.Flags().GetString("source")
	pattern, _ := cmd.Flags().GetString("pattern")
	fromS3, _ := cmd.Flags().GetBool("from-s3")
	workers, _ := cmd.Flags().GetInt("workers")
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")

	if workers <= 0 {
		workers = cfg.IngestWorkers
	}

	pool, err := connectPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	embedder, err := newEmbeddingClient(cfg)
	if err != nil {
		return fmt.Errorf("embedding provider not configured: %w", err)
	}

	loader, err := newLoader(ctx, cfg, sourceDir, pattern, fromS3)
	if err != nil {
		return err
	}

	items, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load source items: %w", err)
	}
	log.Printf("populate: loaded %d source items", len(items))

	repo := repository.NewKnowledgeRepository(pool)
	pipeline := service.NewIngestionService(repo, embedder)
	refresh := service.NewRefreshService(pipeline, repo)

	result, err := refresh.Run(ctx, items, service.RefreshOptions{
		ForceRefresh: forceRefresh,
		ClearFirst:   clearFirst,
		Workers:      workers,
		EmbedTimeout: cfg.EmbedTimeout,
	})
	if err != nil {
		return err
	}

	printRefreshResult(cmd, result)

	counts, err := repo.CountByContentType(ctx)
	if err != nil {
		return err
	}
	for _, tc := range counts {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d entries\n", tc.ContentType, tc.Count)
	}

	// Item-level failures are reported above but do not fail the run
	return nil
}


func printRefreshResult(cmd *cobra.Command, result *service.RefreshResult) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "mode: %s\n", result.Mode)
	if result.Mode == service.ModeClearFirst {
		fmt.Fprintf(out, "cleared: %d\n", result.Cleared)
	}

	s := result.Summary
	fmt.Fprintf(out, "created: %d  updated: %d  skipped: %d  failed: %d\n",
		s.Created, s.Updated, s.Skipped, s.Failed)

	for _, f := range s.Failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed %s/%s (%s): %v\n",
			f.ContentType, f.ContentID, f.Kind, f.Err)
	}
}
