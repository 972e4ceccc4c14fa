package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeEmbedding     = "EMBEDDING_ERROR"
	ErrCodeStorage       = "STORAGE_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// NewEmbeddingError wraps a failure from the embedding provider.
// Recovered per item: logged, counted as a failure, the run continues.
func NewEmbeddingError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbedding, "embedding generation failed", err)
}

// NewStorageError wraps a failure from the vector store. Callers must not
// assume a partial write succeeded.
func NewStorageError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeStorage, message, err)
}

// Validation errors
var (
	ErrMissingContentID   = NewDomainError(ErrCodeValidation, "source item is missing content_id")
	ErrMissingContentType = NewDomainError(ErrCodeValidation, "source item is missing content_type")
	ErrMissingContent     = NewDomainError(ErrCodeValidation, "source item has no content to embed")
)

// Not found errors
var (
	ErrEntryNotFound = NewDomainError(ErrCodeNotFound, "knowledge entry not found")
)

// ErrorCode extracts the domain error code from err, walking the unwrap
// chain. Returns ErrCodeInternalError for non-domain errors.
func ErrorCode(err error) string {
	for err != nil {
		if derr, ok := err.(*DomainError); ok {
			return derr.Code
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return ErrCodeInternalError
}
