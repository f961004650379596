package errors

import (
	"fmt"
	"net/http"
)

// StandardError represents a standardized error response
type StandardError struct {
	Code    string `json:"error"`   // Error code/type (e.g., "InsufficientAvailable", "UnitNotFound")
	Message string `json:"message"` // Human-readable error message
	Details string `json:"details"` // Additional details (counters, field name, etc.)
}

// Error implements the error interface
func (e *StandardError) Error() string {
	return e.Message
}

// HTTPStatus returns the appropriate HTTP status code for the error
func (e *StandardError) HTTPStatus() int {
	switch e.Code {
	case "InvalidRequest", "ValidationError":
		return http.StatusBadRequest
	case "UnitNotFound", "WarehouseNotFound", "ResourceNotFound":
		return http.StatusNotFound
	case "InsufficientOnHand", "InsufficientAvailable", "NothingToRelease", "CommitFailed", "InvalidTaskTransition", "Conflict":
		return http.StatusConflict
	case "BrokerConnectionError", "ServiceUnavailable":
		return http.StatusServiceUnavailable
	case "SerializationError", "DatabaseError", "InternalError":
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewStandardError creates a new StandardError
func NewStandardError(errorCode, message, details string) *StandardError {
	return &StandardError{
		Code:    errorCode,
		Message: message,
		Details: details,
	}
}

// Common error constructors
func NewInvalidRequest(message, details string) *StandardError {
	return NewStandardError("InvalidRequest", message, details)
}

func NewValidationError(message, field string) *StandardError {
	return NewStandardError("ValidationError", message, fmt.Sprintf("Field: %s", field))
}

func NewUnitNotFound(unitKey string) *StandardError {
	return NewStandardError("UnitNotFound", "stock unit not found", fmt.Sprintf("Unit: %s", unitKey))
}

func NewWarehouseNotFound(code string) *StandardError {
	return NewStandardError("WarehouseNotFound", "warehouse not found", fmt.Sprintf("Code: %s", code))
}

func NewInsufficientOnHand(onHand, requested int) *StandardError {
	return NewStandardError("InsufficientOnHand", "insufficient on-hand stock",
		fmt.Sprintf("OnHand: %d, Requested: %d", onHand, requested))
}

func NewInsufficientAvailable(available, requested int) *StandardError {
	return NewStandardError("InsufficientAvailable", "insufficient available stock",
		fmt.Sprintf("Available: %d, Requested: %d", available, requested))
}

func NewNothingToRelease(reserved, requested int) *StandardError {
	return NewStandardError("NothingToRelease", "release exceeds reserved stock",
		fmt.Sprintf("Reserved: %d, Requested: %d", reserved, requested))
}

func NewCommitFailed(details string) *StandardError {
	return NewStandardError("CommitFailed", "commit failed on insufficient stock", details)
}

func NewSerializationError(err error) *StandardError {
	return NewStandardError("SerializationError", "failed to serialize data", err.Error())
}

func NewDatabaseError(operation string, err error) *StandardError {
	return NewStandardError("DatabaseError", fmt.Sprintf("database operation failed: %s", operation), err.Error())
}

func NewBrokerConnectionError(err error) *StandardError {
	return NewStandardError("BrokerConnectionError", "failed to connect to event broker", err.Error())
}

func NewInternalError(message string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return NewStandardError("InternalError", message, details)
}
