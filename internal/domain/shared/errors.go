package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// ItemIndex identifies the offending item in multi-item operations
	// (dispatch, return, scrap). Nil for single-target operations.
	ItemIndex *int `json:"item_index,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.ItemIndex != nil {
		return fmt.Sprintf("%s (item %d)", e.Message, *e.ItemIndex)
	}
	return e.Message
}

// Is reports whether the target is a DomainError with the same code.
// This lets callers match sentinel errors with errors.Is even when the
// message carries operation-specific detail.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithItemIndex returns a copy of the error annotated with the failing item index
func (e *DomainError) WithItemIndex(index int) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, ItemIndex: &index}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrPiecesLocked        = NewDomainError("PIECES_LOCKED", "Pieces are locked by another transaction")
	ErrInsufficientPieces  = NewDomainError("INSUFFICIENT_PIECES", "Not enough pieces available")
	ErrDuplicateBatchCode  = NewDomainError("DUPLICATE_BATCH_CODE", "Batch code already exists")
	ErrMixedScrapForbidden = NewDomainError("MIXED_SCRAP_FORBIDDEN", "Scrap items must share one product category and one stock type")
	ErrAlreadyReverted     = NewDomainError("ALREADY_REVERTED", "Transaction has already been reverted")
	ErrCannotRevert        = NewDomainError("CANNOT_REVERT", "Downstream state prevents a precise rollback")
)

// Per-operation validation error codes
const (
	CodeInvalidProduction = "INVALID_PRODUCTION"
	CodeInvalidCut        = "INVALID_CUT"
	CodeInvalidSplit      = "INVALID_SPLIT"
	CodeInvalidCombine    = "INVALID_COMBINE"
	CodeInvalidDispatch   = "INVALID_DISPATCH"
	CodeInvalidReturn     = "INVALID_RETURN"
	CodeInvalidScrap      = "INVALID_SCRAP"
	CodeInvalidRevert     = "INVALID_REVERT"
)

// IsRetryable reports whether the error is transient and the caller should
// retry with backoff (lock contention or optimistic version mismatch).
func IsRetryable(err error) bool {
	de, ok := err.(*DomainError)
	if !ok {
		return false
	}
	return de.Code == ErrPiecesLocked.Code || de.Code == ErrConcurrencyConflict.Code
}
