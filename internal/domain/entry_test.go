package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSourceItem(t *testing.T) {
	tests := []struct {
		name    string
		item    SourceItem
		wantErr error
	}{
		{
			name: "valid item",
			item: SourceItem{
				ContentID:   "42",
				ContentType: "policy",
				Title:       "Remote work policy",
				Content:     "Employees may work remotely up to three days a week.",
			},
			wantErr: nil,
		},
		{
			name: "missing content_id",
			item: SourceItem{
				ContentType: "policy",
				Content:     "some text",
			},
			wantErr: ErrMissingContentID,
		},
		{
			name: "missing content_type",
			item: SourceItem{
				ContentID: "42",
				Content:   "some text",
			},
			wantErr: ErrMissingContentType,
		},
		{
			name: "missing content",
			item: SourceItem{
				ContentID:   "42",
				ContentType: "policy",
				Title:       "Empty",
			},
			wantErr: ErrMissingContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSourceItem(tt.item)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSourceItemKey(t *testing.T) {
	item := SourceItem{ContentID: "42", ContentType: "faq"}
	assert.Equal(t, "faq/42", item.Key())
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeValidation, ErrorCode(ErrMissingContentID))
	assert.Equal(t, ErrCodeNotFound, ErrorCode(ErrEntryNotFound))
	assert.Equal(t, ErrCodeEmbedding, ErrorCode(NewEmbeddingError(errors.New("rate limited"))))
	assert.Equal(t, ErrCodeStorage, ErrorCode(NewStorageError("upsert failed", errors.New("conn reset"))))
	assert.Equal(t, ErrCodeInternalError, ErrorCode(errors.New("plain error")))

	wrapped := fmt.Errorf("run aborted: %w", ErrEntryNotFound)
	assert.Equal(t, ErrCodeNotFound, ErrorCode(wrapped))
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := errors.New("dial timeout")
	err := NewStorageError("clear failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "STORAGE_ERROR")
	assert.Contains(t, err.Error(), "dial timeout")
}
