package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loomworks/ragbase/internal/config"
	"github.com/loomworks/ragbase/internal/database"
	"github.com/loomworks/ragbase/internal/openai"
	"github.com/loomworks/ragbase/internal/source"
	"github.com/loomworks/ragbase/internal/telemetry"
	sdkopenai "github.com/sashabaranov/go-openai"
)

// initTelemetry initializes Sentry tracing when SENTRY_DSN is set. Failures
// are logged and ignored: tracing is never a reason to refuse a run.
func initTelemetry() func() {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return func() {}
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	sampleRate := 0.1
	if environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              dsn,
		Environment:      environment,
		TracesSampleRate: sampleRate,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}

func connectPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := database.Connect(ctx, cfg.DatabaseURL, int32(cfg.IngestWorkers)+2)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

func newEmbeddingClient(cfg *config.Config) (*openai.Client, error) {
	if !cfg.HasOpenAI() {
		return nil, openai.ErrNoAPIKey
	}
	return openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      sdkopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	}), nil
}

// newLoader selects the source feed: an S3 bucket when requested, a local
// directory otherwise.
func newLoader(ctx context.Context, cfg *config.Config, dir, pattern string, fromS3 bool) (source.Loader, error) {
	if fromS3 {
		if !cfg.HasS3() {
			return nil, fmt.Errorf("S3 source requested but RAGBASE_S3_ENDPOINT, RAGBASE_S3_ACCESS_KEY_ID and RAGBASE_S3_SECRET_ACCESS_KEY are not all set")
		}
		return source.NewS3Loader(ctx, source.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			UsePathStyle:    true,
		})
	}

	if dir == "" {
		dir = cfg.SourceDir
	}
	if pattern == "" {
		pattern = cfg.SourcePattern
	}
	return source.NewDirLoader(dir, pattern), nil
}
