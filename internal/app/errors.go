package app

import (
	"fmt"
	"net/http"
)

// DomainError carries a stable machine-readable code alongside the HTTP
// status so handlers can map guide failures without string matching.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errUnknownActivity() *DomainError {
	return domainError(http.StatusNotFound, "UNKNOWN_ACTIVITY", "Unknown activity", nil)
}

func errSectionNotFound() *DomainError {
	return domainError(http.StatusNotFound, "SECTION_NOT_FOUND", "Section not found", nil)
}

func errStoreUnavailable() *DomainError {
	return domainError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Section store unavailable", nil)
}

func errValidation(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}
