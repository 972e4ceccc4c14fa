package domain

import "time"

// Metadata is the open key-value payload attached to a knowledge entry.
// Its shape is caller-defined; it is persisted as jsonb and queryable by
// containment, never interpreted by the ingestion pipeline itself.
type Metadata map[string]any

// KnowledgeEntry is the unit of storage in the knowledge base.
// (ContentID, ContentType) forms the natural key: ContentID alone is not
// unique, identity is always scoped by ContentType.
type KnowledgeEntry struct {
	ID          string
	ContentID   string
	ContentType string
	Title       string
	Content     string
	Metadata    Metadata
	Embedding   []float32
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SourceItem is a candidate item read from a source feed before embedding.
type SourceItem struct {
	ContentID   string   `json:"content_id"`
	ContentType string   `json:"content_type"`
	Title       string   `json:"title,omitempty"`
	Content     string   `json:"content"`
	Metadata    Metadata `json:"metadata,omitempty"`
}

// Key returns the natural identity of the item.
func (s SourceItem) Key() string {
	return s.ContentType + "/" + s.ContentID
}

// ValidateSourceItem validates a source item before ingestion.
func ValidateSourceItem(item SourceItem) error {
	if item.ContentID == "" {
		return ErrMissingContentID
	}

	if item.ContentType == "" {
		return ErrMissingContentType
	}

	if item.Content == "" {
		return ErrMissingContent
	}

	return nil
}
