package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so wrapped copies with a different
// message still satisfy errors.Is against the sentinels below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
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
	ErrNotFound     = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrUnauthorized = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrInvalidState = NewDomainError("INVALID_STATE", "Operation not allowed in current state")

	// ErrSourceUnavailable is returned when the catalog cannot be reached or
	// answered with something unreadable. It is always retryable.
	ErrSourceUnavailable = NewDomainError("SOURCE_UNAVAILABLE", "Catalog source unavailable")
	// ErrValidationFailed marks a submit attempt blocked by invalid fields.
	ErrValidationFailed = NewDomainError("VALIDATION_FAILED", "One or more fields are invalid")
	// ErrSubmissionRejected is returned when the order recipient declines a draft.
	ErrSubmissionRejected = NewDomainError("SUBMISSION_REJECTED", "Order submission was rejected")
)
