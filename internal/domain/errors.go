package domain

// Domain errors
var (
	ErrInsufficientOnHand    = &DomainError{Code: "insufficient_on_hand", Message: "insufficient on-hand stock"}
	ErrInsufficientAvailable = &DomainError{Code: "insufficient_available", Message: "insufficient available stock"}
	ErrNothingToRelease      = &DomainError{Code: "nothing_to_release", Message: "release exceeds reserved stock"}
	ErrCommitFailed          = &DomainError{Code: "commit_failed_insufficient", Message: "commit failed on insufficient stock"}
	ErrUnitNotFound          = &DomainError{Code: "unit_not_found", Message: "stock unit not found"}
	ErrWarehouseNotFound     = &DomainError{Code: "warehouse_not_found", Message: "warehouse not found"}
	ErrInvalidQuantity       = &DomainError{Code: "invalid_quantity", Message: "quantity must be positive"}
	ErrInvalidTaskTransition = &DomainError{Code: "invalid_task_transition", Message: "invalid fulfillment task transition"}
)

// DomainError represents a recoverable domain-level error. All stock
// transition failures signal that a precondition did not hold; the caller
// decides whether to retry, compensate, or surface a conflict.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}
