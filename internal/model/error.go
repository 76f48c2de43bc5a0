package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON          = "INVALID_JSON"
	ErrCodeMissingField         = "MISSING_FIELD"
	ErrCodeInvalidParameter     = "INVALID_PARAMETER"
	ErrCodeInvalidQuantity      = "INVALID_QUANTITY"
	ErrCodeEmptyCart            = "EMPTY_CART"
	ErrCodeOrderPersistFailure  = "ORDER_PERSIST_FAILURE"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeAlreadyAssigned      = "ALREADY_ASSIGNED"
	ErrCodeDataStoreUnavailable = "DATA_STORE_UNAVAILABLE"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeItemNotAvailable     = "ITEM_NOT_AVAILABLE"
	ErrCodeUnauthorised         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// DomainError is a business rule violation with a short advisory message.
// Two domain errors match under errors.Is when their codes are equal, so a
// wrapped copy still matches the sentinel it was created from.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a domain error with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap returns a copy of the domain error carrying cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Err:     cause,
	}
}

// WithMessage returns a copy of the domain error with a more specific message.
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
	}
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
	ErrInvalidJSON          = NewDomainError(ErrCodeInvalidJSON, "Request body is not valid JSON")
	ErrInvalidQuantity      = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be at least one")
	ErrEmptyCart            = NewDomainError(ErrCodeEmptyCart, "Cart is empty")
	ErrOrderPersistFailure  = NewDomainError(ErrCodeOrderPersistFailure, "Order could not be saved, please try again")
	ErrInvalidTransition    = NewDomainError(ErrCodeInvalidTransition, "Order status cannot change that way")
	ErrAlreadyAssigned      = NewDomainError(ErrCodeAlreadyAssigned, "Order is already assigned to a deliveryman")
	ErrDataStoreUnavailable = NewDomainError(ErrCodeDataStoreUnavailable, "Service temporarily unavailable, please retry")
	ErrNotFound             = NewDomainError(ErrCodeNotFound, "Not found")
	ErrItemNotSoldAtBranch  = NewDomainError(ErrCodeItemNotAvailable, "Menu item is not sold at this branch")
	ErrUnauthorised         = NewDomainError(ErrCodeUnauthorised, "Authentication required")
	ErrForbidden            = NewDomainError(ErrCodeForbidden, "Not allowed for this account")
)
