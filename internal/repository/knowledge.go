package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loomworks/ragbase/internal/domain"
	"github.com/loomworks/ragbase/internal/service"
	"github.com/pgvector/pgvector-go"
)

// KnowledgeRepository is the pgvector-backed store for knowledge entries.
// The unique constraint on (content_id, content_type) guarantees at most one
// row per natural key; secondary indexes (content_type, content_id, metadata
// GIN, embedding ivfflat) are maintained atomically with every write.
type KnowledgeRepository struct {
	db dbtx
}

func NewKnowledgeRepository(pool *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: pool}
}

func NewKnowledgeRepositoryWithTx(tx pgx.Tx) *KnowledgeRepository {
	return &KnowledgeRepository{db: tx}
}

// Upsert inserts the entry, or replaces content, metadata, embedding and
// updated_at when a row with the same (content_id, content_type) exists.
// created_at of an existing row is preserved. The conflict-resolving write
// makes the operation atomic per key.
func (r *KnowledgeRepository) Upsert(ctx context.Context, e *domain.KnowledgeEntry) error {
	metadata, err := marshalMetadata(e.Metadata)
	if err != nil {
		return domain.NewStorageError("failed to encode metadata", err)
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO knowledge_base
			(id, content_id, content_type, title, content, metadata, embedding, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (content_id, content_type) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at`,
		e.ID, e.ContentID, e.ContentType, e.Title, e.Content, metadata,
		pgvector.NewVector(e.Embedding), e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return domain.NewStorageError("failed to upsert knowledge entry", err)
	}
	return nil
}

// Get returns the entry for (contentID, contentType), or
// domain.ErrEntryNotFound when none exists.
func (r *KnowledgeRepository) Get(ctx context.Context, contentID, contentType string) (*domain.KnowledgeEntry, error) {
	var e domain.KnowledgeEntry
	var embedding pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT id, content_id, content_type, title, content, metadata, embedding, created_at, updated_at
		 FROM knowledge_base WHERE content_id = $1 AND content_type = $2`,
		contentID, contentType,
	).Scan(&e.ID, &e.ContentID, &e.ContentType, &e.Title, &e.Content, &e.Metadata, &embedding, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, domain.NewStorageError("failed to get knowledge entry", err)
	}
	e.Embedding = embedding.Slice()
	return &e, nil
}

// Exists reports whether an entry exists for (contentID, contentType).
func (r *KnowledgeRepository) Exists(ctx context.Context, contentID, contentType string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM knowledge_base WHERE content_id = $1 AND content_type = $2)`,
		contentID, contentType,
	).Scan(&exists)
	if err != nil {
		return false, domain.NewStorageError("failed to check knowledge entry", err)
	}
	return exists, nil
}

// Clear deletes all entries and returns the number deleted. A single DELETE
// statement runs in its own transaction, so index maintenance is atomic with
// the row removal.
func (r *KnowledgeRepository) Clear(ctx context.Context) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM knowledge_base`)
	if err != nil {
		return 0, domain.NewStorageError("failed to clear knowledge base", err)
	}
	return cmdTag.RowsAffected(), nil
}

// ClearContentType deletes all entries of one content type.
func (r *KnowledgeRepository) ClearContentType(ctx context.Context, contentType string) (int64, error) {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_base WHERE content_type = $1`,
		contentType,
	)
	if err != nil {
		return 0, domain.NewStorageError("failed to clear content type", err)
	}
	return cmdTag.RowsAffected(), nil
}

// SearchByVector returns the k entries closest to query by cosine distance,
// optionally restricted by content type and metadata containment. The
// ivfflat index makes results approximate for large k relative to its list
// count.
func (r *KnowledgeRepository) SearchByVector(ctx context.Context, query []float32, k int, filter service.SearchFilter) ([]*service.SearchResult, error) {
	if k <= 0 {
		k = 10
	}

	sql := `
		SELECT id, content_id, content_type, title, content, metadata, created_at, updated_at,
		       embedding <=> $1 AS distance
		FROM knowledge_base`
	args := []any{pgvector.NewVector(query)}

	var conditions []string
	if len(filter.ContentTypes) > 0 {
		args = append(args, filter.ContentTypes)
		conditions = append(conditions, fmt.Sprintf("content_type = ANY($%d)", len(args)))
	}
	if len(filter.Metadata) > 0 {
		predicate, err := marshalMetadata(filter.Metadata)
		if err != nil {
			return nil, domain.NewStorageError("failed to encode metadata predicate", err)
		}
		args = append(args, predicate)
		conditions = append(conditions, fmt.Sprintf("metadata @> $%d", len(args)))
	}
	if len(conditions) > 0 {
		sql += " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, k)
	sql += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, domain.NewStorageError("failed to search by vector", err)
	}
	defer rows.Close()

	var results []*service.SearchResult
	for rows.Next() {
		var e domain.KnowledgeEntry
		var distance float32
		if err := rows.Scan(&e.ID, &e.ContentID, &e.ContentType, &e.Title, &e.Content, &e.Metadata, &e.CreatedAt, &e.UpdatedAt, &distance); err != nil {
			return nil, domain.NewStorageError("failed to scan search result", err)
		}
		results = append(results, &service.SearchResult{
			Entry:    &e,
			Distance: distance,
			Score:    1.0 / (1.0 + distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("failed to read search results", err)
	}
	return results, nil
}

// SearchByMetadata returns entries whose metadata contains the predicate,
// optionally restricted to one content type. No embedding is involved.
func (r *KnowledgeRepository) SearchByMetadata(ctx context.Context, predicate domain.Metadata, contentType string, limit int) ([]*domain.KnowledgeEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	predicateJSON, err := marshalMetadata(predicate)
	if err != nil {
		return nil, domain.NewStorageError("failed to encode metadata predicate", err)
	}

	sql := `
		SELECT id, content_id, content_type, title, content, metadata, created_at, updated_at
		FROM knowledge_base
		WHERE metadata @> $1`
	args := []any{predicateJSON}

	if contentType != "" {
		sql += " AND content_type = $2"
		args = append(args, contentType)
	}

	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY updated_at DESC, content_id LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, domain.NewStorageError("failed to search by metadata", err)
	}
	defer rows.Close()

	return scanEntryRows(rows)
}

// Count returns the total number of entries.
func (r *KnowledgeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_base`).Scan(&count)
	if err != nil {
		return 0, domain.NewStorageError("failed to count knowledge entries", err)
	}
	return count, nil
}

// TypeCount is the number of entries for one content type.
type TypeCount struct {
	ContentType string
	Count       int64
}

// CountByContentType returns entry counts grouped by content type, ordered
// by type name for stable output.
func (r *KnowledgeRepository) CountByContentType(ctx context.Context) ([]TypeCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT content_type, COUNT(*) FROM knowledge_base GROUP BY content_type ORDER BY content_type`,
	)
	if err != nil {
		return nil, domain.NewStorageError("failed to count by content type", err)
	}
	defer rows.Close()

	var counts []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.ContentType, &tc.Count); err != nil {
			return nil, domain.NewStorageError("failed to scan type count", err)
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

func scanEntryRows(rows pgx.Rows) ([]*domain.KnowledgeEntry, error) {
	var results []*domain.KnowledgeEntry
	for rows.Next() {
		var e domain.KnowledgeEntry
		if err := rows.Scan(&e.ID, &e.ContentID, &e.ContentType, &e.Title, &e.Content, &e.Metadata, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, domain.NewStorageError("failed to scan knowledge entry", err)
		}
		results = append(results, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("failed to read knowledge entries", err)
	}
	return results, nil
}

func marshalMetadata(m domain.Metadata) ([]byte, error) {
	if m == nil {
		m = domain.Metadata{}
	}
	return json.Marshal(m)
}

