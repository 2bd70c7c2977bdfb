package services

import "net/http"

// ErrorKind classifies service failures so callers can tell retryable
// conditions apart from terminal ones.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
	KindExternal   ErrorKind = "external"
	KindInternal   ErrorKind = "internal"
)

type ServiceError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

func NewValidationError(message string) *ServiceError {
	return &ServiceError{Kind: KindValidation, StatusCode: http.StatusBadRequest, Message: message}
}

func NewConflictError(message string) *ServiceError {
	return &ServiceError{Kind: KindConflict, StatusCode: http.StatusConflict, Message: message}
}

func NewNotFoundError(message string) *ServiceError {
	return &ServiceError{Kind: KindNotFound, StatusCode: http.StatusNotFound, Message: message}
}

// NewExternalError marks a payment-provider failure. Distinct from
// validation errors so callers know the local order may already exist.
func NewExternalError(message string) *ServiceError {
	return &ServiceError{Kind: KindExternal, StatusCode: http.StatusBadGateway, Message: message}
}

func NewInternalError(message string) *ServiceError {
	return &ServiceError{Kind: KindInternal, StatusCode: http.StatusInternalServerError, Message: message}
}
