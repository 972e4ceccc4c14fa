package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loomworks/ragbase/internal/api/handlers"
	"github.com/loomworks/ragbase/internal/config"
	"github.com/loomworks/ragbase/internal/openai"
	"github.com/loomworks/ragbase/internal/repository"
	"github.com/loomworks/ragbase/internal/server"
	"github.com/loomworks/ragbase/internal/service"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the knowledge base API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (defaults to RAGBASE_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	shutdownTelemetry := initTelemetry()
	defer shutdownTelemetry()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" {
		cfg.Port = portFlag
	}

	pool, err := connectPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	repo := repository.NewKnowledgeRepository(pool)

	var embedder service.EmbeddingClient
	if cfg.HasOpenAI() {
		embedder, err = newEmbeddingClient(cfg)
		if err != nil {
			return err
		}
	} else {
		// Metadata listing and stats still work without a provider
		log.Println("no embedding provider configured, similarity search disabled")
		embedder = &unavailableEmbedder{}
	}

	searchSvc := service.NewSearchService(repo, embedder)
	knowledgeHandler := handlers.NewKnowledgeHandler(searchSvc, repo)

	router := server.NewRouter(server.RouterConfig{
		KnowledgeHandler: knowledgeHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

type unavailableEmbedder struct{}

func (e *unavailableEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, openai.ErrNoAPIKey
}
