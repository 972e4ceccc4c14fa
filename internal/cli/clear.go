package cli

import (
	"context"
	"fmt"

	"github.com/loomworks/ragbase/internal/config"
	"github.com/loomworks/ragbase/internal/repository"
	"github.com/spf13/cobra"
)

// ClearCmd returns the clear command
func ClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete knowledge base entries",
		Long:  "Delete all entries, or only those of one content type with --type",
		RunE:  runClear,
	}

	cmd.Flags().StringP("type", "t", "", "Only delete entries of this content type")
	cmd.Flags().Bool("yes", false, "Skip the confirmation prompt")

	return cmd
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	contentType, _ := cmd.Flags().GetString("type")
	yes, _ := cmd.Flags().GetBool("yes")

	if !yes {
		target := "ALL entries"
		if contentType != "" {
			target = fmt.Sprintf("all %q entries", contentType)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "This will delete %s. Continue? [y/N] ", target)
		var answer string
		fmt.Fscanln(cmd.InOrStdin(), &answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted")
			return nil
		}
	}

	pool, err := connectPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := repository.NewKnowledgeRepository(pool)

	var deleted int64
	if contentType != "" {
		deleted, err = repo.ClearContentType(ctx, contentType)
	} else {
		deleted, err = repo.Clear(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries\n", deleted)
	return nil
}
