package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loomworks/ragbase/internal/domain"
	"github.com/loomworks/ragbase/internal/telemetry"
)

const (
	defaultEmbedTimeout = 30 * time.Second
)

// EmbeddingClient defines the interface for generating embeddings.
// Implementations may be slow and may fail; the pipeline bounds each call
// with a timeout and never treats a single failure as fatal.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// IngestStore is the storage contract used by the ingestion pipeline.
// Get must return domain.ErrEntryNotFound when no entry exists for the key.
// Upsert must be atomic per (content_id, content_type).
type IngestStore interface {
	Get(ctx context.Context, contentID, contentType string) (*domain.KnowledgeEntry, error)
	Upsert(ctx context.Context, entry *domain.KnowledgeEntry) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// RunOptions parameterizes one ingestion pass. Mode is explicit per call;
// there is no process-wide mode state.
type RunOptions struct {
	// ForceRefresh re-embeds and upserts existing entries, even when the
	// stored content is byte-identical.
	ForceRefresh bool
	// Workers bounds concurrent embedding calls. Values below 1 mean sequential.
	Workers int
	// EmbedTimeout bounds a single provider call. Expiry counts as a
	// per-item failure, not a fatal error.
	EmbedTimeout time.Duration
}

// ItemFailure records one failed source item in a run summary.
type ItemFailure struct {
	ContentID   string
	ContentType string
	Kind        string
	Err         error
}

// RunSummary is the structured outcome of one ingestion pass.
// Skipped is expected behavior, Failed is surfaced with the identity of the
// offending item and error kind.
type RunSummary struct {
	Created int
	Updated int
	Skipped int
	Failed  int

	Failures []ItemFailure
}

// Total returns the number of items accounted for by the summary.
func (s *RunSummary) Total() int {
	return s.Created + s.Updated + s.Skipped + s.Failed
}

// IngestionService drives one pass over a set of source items, producing
// zero or more vector store writes.
type IngestionService struct {
	store    IngestStore
	embedder EmbeddingClient
	uuidGen  UUIDGenerator
}

// NewIngestionService creates a new IngestionService instance
func NewIngestionService(store IngestStore, embedder EmbeddingClient) *IngestionService {
	return &IngestionService{
		store:    store,
		embedder: embedder,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// NewIngestionServiceWithUUIDGen creates an IngestionService with a custom UUID generator (for testing)
func NewIngestionServiceWithUUIDGen(store IngestStore, embedder EmbeddingClient, uuidGen UUIDGenerator) *IngestionService {
	return &IngestionService{
		store:    store,
		embedder: embedder,
		uuidGen:  uuidGen,
	}
}

type itemOutcome int

const (
	outcomeCreated itemOutcome = iota
	outcomeUpdated
	outcomeSkipped
	outcomeFailed
)

// Run processes items with a bounded worker pool. Per-item errors are
// recorded in the summary and never abort the remaining items. The returned
// error is non-nil only for run-level interruption (context cancellation);
// items already upserted stay committed, and the run is safe to re-run.
func (s *IngestionService) Run(ctx context.Context, items []domain.SourceItem, opts RunOptions) (*RunSummary, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Run", telemetry.SpanAttributes{
		Operation: "ingest",
	})
	defer span.End()

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) && len(items) > 0 {
		workers = len(items)
	}

	summary := &RunSummary{}
	var summaryMu sync.Mutex

	// Writes for the same (content_id, content_type) must be serialized so
	// two refreshes of one entry cannot interleave between lookup and upsert.
	locks := newKeyLocks()

	itemCh := make(chan domain.SourceItem)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				outcome, err := s.processItem(ctx, item, opts, locks)

				summaryMu.Lock()
				switch outcome {
				case outcomeCreated:
					summary.Created++
				case outcomeUpdated:
					summary.Updated++
				case outcomeSkipped:
					summary.Skipped++
				case outcomeFailed:
					summary.Failed++
					summary.Failures = append(summary.Failures, ItemFailure{
						ContentID:   item.ContentID,
						ContentType: item.ContentType,
						Kind:        domain.ErrorCode(err),
						Err:         err,
					})
				}
				summaryMu.Unlock()

				if err != nil {
					log.Printf("ingest: item %s failed: %v", item.Key(), err)
				}
			}
		}()
	}

	// Stop dispatching when the run is cancelled; in-flight items finish and
	// their writes stay committed.
	var runErr error
dispatch:
	for _, item := range items {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break dispatch
		case itemCh <- item:
		}
	}
	close(itemCh)
	wg.Wait()

	return summary, runErr
}

// processItem applies the per-item algorithm: absent keys are always
// embedded and inserted; existing keys are skipped unless force-refresh is
// set, in which case the content is re-embedded unconditionally.
func (s *IngestionService) processItem(ctx context.Context, item domain.SourceItem, opts RunOptions, locks *keyLocks) (itemOutcome, error) {
	if err := domain.ValidateSourceItem(item); err != nil {
		return outcomeFailed, err
	}

	unlock := locks.lock(item.Key())
	defer unlock()

	existing, err := s.store.Get(ctx, item.ContentID, item.ContentType)
	if err != nil && !errors.Is(err, domain.ErrEntryNotFound) {
		return outcomeFailed, err
	}

	// Skip is decided on identity alone, not a content hash: silently changed
	// content is not refreshed without force-refresh.
	if existing != nil && !opts.ForceRefresh {
		return outcomeSkipped, nil
	}

	embedding, err := s.generateEmbedding(ctx, item.Content, opts.EmbedTimeout)
	if err != nil {
		return outcomeFailed, err
	}

	now := time.Now().UTC()
	entry := &domain.KnowledgeEntry{
		ID:          s.uuidGen.NewString(),
		ContentID:   item.ContentID,
		ContentType: item.ContentType,
		Title:       item.Title,
		Content:     item.Content,
		Metadata:    item.Metadata,
		Embedding:   embedding,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing != nil {
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
	}

	if err := s.store.Upsert(ctx, entry); err != nil {
		return outcomeFailed, err
	}

	if existing != nil {
		return outcomeUpdated, nil
	}
	return outcomeCreated, nil
}

func (s *IngestionService) generateEmbedding(ctx context.Context, content string, timeout time.Duration) ([]float32, error) {
	if timeout <= 0 {
		timeout = defaultEmbedTimeout
	}
	embedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	embedding, err := s.embedder.GenerateEmbedding(embedCtx, content)
	if err != nil {
		return nil, domain.NewEmbeddingError(err)
	}
	return embedding, nil
}

// keyLocks serializes work per natural key so duplicate keys within one
// batch cannot race each other across workers.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
