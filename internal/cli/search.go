package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loomworks/ragbase/internal/config"
	"github.com/loomworks/ragbase/internal/domain"
	"github.com/loomworks/ragbase/internal/repository"
	"github.com/loomworks/ragbase/internal/service"
	"github.com/spf13/cobra"
)

// SearchCmd returns the search command
func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base by semantic similarity",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().StringSliceP("type", "t", nil, "Restrict results to the given content types")
	cmd.Flags().String("metadata", "", "JSON metadata predicate, e.g. '{\"department\":\"hr\"}'")
	cmd.Flags().IntP("limit", "k", 10, "Maximum number of results")
	cmd.Flags().Float32("min-score", 0, "Drop results scoring below this threshold")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	shutdownTelemetry := initTelemetry()
	defer shutdownTelemetry()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	contentTypes, _ := cmd.Flags().GetStringSlice("type")
	metadataRaw, _ := cmd.Flags().GetString("metadata")
	limit, _ := cmd.Flags().GetInt("limit")
	minScore, _ := cmd.Flags().GetFloat32("min-score")

	var predicate domain.Metadata
	if metadataRaw != "" {
		if err := json.Unmarshal([]byte(metadataRaw), &predicate); err != nil {
			return fmt.Errorf("invalid --metadata value: %w", err)
		}
	}

	pool, err := connectPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	embedder, err := newEmbeddingClient(cfg)
	if err != nil {
		return fmt.Errorf("embedding provider not configured: %w", err)
	}

	repo := repository.NewKnowledgeRepository(pool)
	svc := service.NewSearchService(repo, embedder)

	results, err := svc.Search(ctx, service.SearchInput{
		Query:        args[0],
		ContentTypes: contentTypes,
		Metadata:     predicate,
		Limit:        limit,
		MinScore:     minScore,
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no results")
		return nil
	}

	for i, r := range results {
		title := r.Entry.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%2d. [%.3f] %s/%s %s\n",
			i+1, r.Score, r.Entry.ContentType, r.Entry.ContentID, title)
	}
	return nil
}
