package service

import (
	"context"
	"log"
	"time"

	"github.com/loomworks/ragbase/internal/domain"
	"github.com/loomworks/ragbase/internal/telemetry"
)

// Mode is the operating mode of one refresh run, resolved once at run start
// from operator input.
type Mode string

const (
	// ModePopulate only ingests items whose (content_id, content_type) is
	// absent from the store. Re-running it is idempotent.
	ModePopulate Mode = "populate-new-only"
	// ModeForceRefresh re-embeds existing entries too. It never deletes
	// entries absent from the current source set.
	ModeForceRefresh Mode = "force-refresh"
	// ModeClearFirst empties the store, then populates. Every item becomes a
	// create.
	ModeClearFirst Mode = "clear-first"
)

// RefreshOptions is the operator-facing flag surface.
type RefreshOptions struct {
	ForceRefresh bool
	ClearFirst   bool
	Workers      int
	EmbedTimeout time.Duration
}

// Mode resolves the flag combination to a single mode. Clear-first combined
// with force-refresh collapses to clear-first: clearing already routes every
// item through the create path, so the extra flag is harmless.
func (o RefreshOptions) Mode() Mode {
	switch {
	case o.ClearFirst:
		return ModeClearFirst
	case o.ForceRefresh:
		return ModeForceRefresh
	default:
		return ModePopulate
	}
}

// ClearStore is the storage contract for the clear-first reset. Clear must
// be all-or-nothing: a partial clear leaving orphaned index entries would be
// a correctness bug.
type ClearStore interface {
	Clear(ctx context.Context) (int64, error)
}

// RefreshResult is the outcome of one refresh run.
type RefreshResult struct {
	Mode    Mode
	Cleared int64
	Summary *RunSummary
}

// RefreshService layers the operating modes on top of the ingestion pipeline.
type RefreshService struct {
	pipeline *IngestionService
	store    ClearStore
}

// NewRefreshService creates a new RefreshService instance
func NewRefreshService(pipeline *IngestionService, store ClearStore) *RefreshService {
	return &RefreshService{
		pipeline: pipeline,
		store:    store,
	}
}

// Run executes one refresh pass. A clear failure is fatal: ingesting into a
// half-cleared store would leave it inconsistent. Per-item failures inside
// the pipeline are recorded in the summary and never abort the run.
func (s *RefreshService) Run(ctx context.Context, items []domain.SourceItem, opts RefreshOptions) (*RefreshResult, error) {
	mode := opts.Mode()

	ctx, span := telemetry.StartSpan(ctx, "RefreshService.Run", telemetry.SpanAttributes{
		Mode:      string(mode),
		Operation: "refresh",
	})
	defer span.End()

	result := &RefreshResult{Mode: mode}

	if mode == ModeClearFirst {
		cleared, err := s.store.Clear(ctx)
		if err != nil {
			span.SetError(err)
			return nil, domain.NewStorageError("failed to clear knowledge base", err)
		}
		result.Cleared = cleared
		log.Printf("refresh: cleared %d existing entries", cleared)
	}

	runOpts := RunOptions{
		// After a clear the store is empty, so populate semantics already
		// send every item down the create path.
		ForceRefresh: mode == ModeForceRefresh,
		Workers:      opts.Workers,
		EmbedTimeout: opts.EmbedTimeout,
	}

	summary, err := s.pipeline.Run(ctx, items, runOpts)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	result.Summary = summary
	return result, nil
}
