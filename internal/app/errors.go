package app

import (
	"fmt"
	"net/http"
)

// Error codes carried in the "code" field of every error body.
const (
	codeNotFound         = "NOT_FOUND"
	codeDuplicateURL     = "DUPLICATE_URL"
	codeValidation       = "VALIDATION_ERROR"
	codeUploadDisabled   = "EXPORT_UPLOAD_UNAVAILABLE"
	codePDFUnavailable   = "EXPORT_PDF_UNAVAILABLE"
	codeInvalidBody      = "INVALID_BODY"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeServerError      = "SERVER_ERROR"
)

// DomainError is a failure the client is meant to see. Anything else that
// reaches the HTTP layer is reported as a 500.
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
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func bookmarkNotFound() *DomainError {
	return &DomainError{Status: http.StatusNotFound, Code: codeNotFound, Message: "Bookmark not found"}
}

func duplicateURL(url string) *DomainError {
	return &DomainError{
		Status:  http.StatusBadRequest,
		Code:    codeDuplicateURL,
		Message: "Bookmark with this URL already exists",
		Details: map[string]any{"url": url},
	}
}

// invalidField reports a request field that failed validation.
func invalidField(field, message string) *DomainError {
	return &DomainError{
		Status:  http.StatusUnprocessableEntity,
		Code:    codeValidation,
		Message: message,
		Details: map[string]any{"field": field},
	}
}

func exportUnavailable(code, message string) *DomainError {
	return &DomainError{Status: http.StatusServiceUnavailable, Code: code, Message: message}
}
