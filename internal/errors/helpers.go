package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field)
}

// NewDuplicateSessionError reports that a session id already has a live
// controller in the registry.
func NewDuplicateSessionError(sessionID string) *AppError {
	return New(ErrCodeDuplicateSession,
		fmt.Sprintf("session %q already exists, try another session id", sessionID)).
		WithContext("session_id", sessionID)
}

// NewTransportError wraps a transport failure.
func NewTransportError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeTransport, fmt.Sprintf("transport %s failed", operation)).
		WithContext("operation", operation)
}

// NewSendError wraps a failed outbound send.
func NewSendError(kind, recipient string, err error) *AppError {
	return Wrap(err, ErrCodeSendFailed, fmt.Sprintf("failed to send %s", kind)).
		WithContext("kind", kind).
		WithContext("recipient", recipient)
}

// NewRecipientError reports an unknown or unregistered recipient. The
// recipient check runs before any send attempt, so this short-circuits the
// network call entirely.
func NewRecipientError(recipient string) *AppError {
	return New(ErrCodeRecipientNotFound,
		fmt.Sprintf("%s is not registered on WhatsApp", recipient)).
		WithContext("recipient", recipient)
}

// NewCredentialsError wraps a credential store failure.
func NewCredentialsError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeCredentials, fmt.Sprintf("credential store %s failed", operation)).
		WithContext("operation", operation)
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier)
}

// HTTPStatusCode maps error codes to appropriate HTTP status codes
func HTTPStatusCode(err error) int {
	switch GetCode(err) {
	case ErrCodeValidationFailed, ErrCodeRecipientNotFound:
		return 400 // Bad Request
	case ErrCodeDuplicateSession:
		return 409 // Conflict
	case ErrCodeNotFound:
		return 404 // Not Found
	case ErrCodeTimeout:
		return 408 // Request Timeout
	case ErrCodeTransport, ErrCodeSendFailed:
		if IsRetryable(err) {
			return 502 // Bad Gateway
		}
		return 500 // Internal Server Error
	case ErrCodeArchive, ErrCodeCredentials:
		return 503 // Service Unavailable
	default:
		return 500 // Internal Server Error
	}
}
