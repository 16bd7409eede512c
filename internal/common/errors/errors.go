// Package errors provides the standardized error taxonomy of the change order
// pipeline and its mapping to HTTP responses.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Client faults
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeUnreadableDocument ErrorCode = "UNREADABLE_DOCUMENT"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"

	// Reasoning service
	ErrCodeSynthesisUnavailable ErrorCode = "SYNTHESIS_UNAVAILABLE"
	ErrCodeSynthesisSchema      ErrorCode = "SYNTHESIS_SCHEMA"
	ErrCodeEmptyBreakdown       ErrorCode = "EMPTY_BREAKDOWN"

	// Rendering and storage
	ErrCodeRenderFailed       ErrorCode = "RENDER_FAILED"
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any *StandardError carrying the same code, so the exported
// sentinels below work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata returns the error with one more metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidInput         = &StandardError{Code: ErrCodeInvalidInput}
	ErrUnreadableDocument   = &StandardError{Code: ErrCodeUnreadableDocument}
	ErrRateLimited          = &StandardError{Code: ErrCodeRateLimited}
	ErrSynthesisUnavailable = &StandardError{Code: ErrCodeSynthesisUnavailable}
	ErrSynthesisSchema      = &StandardError{Code: ErrCodeSynthesisSchema}
	ErrEmptyBreakdown       = &StandardError{Code: ErrCodeEmptyBreakdown}
	ErrRenderFailed         = &StandardError{Code: ErrCodeRenderFailed}
	ErrStorageUnavailable   = &StandardError{Code: ErrCodeStorageUnavailable}
)

// ==========================
// 2. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewInvalidInputError reports malformed or empty caller input.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, nil)
}

// NewUnreadableDocumentError reports a document with no extractable text.
func NewUnreadableDocumentError(details string, err error) *StandardError {
	return newError(ErrCodeUnreadableDocument, "Document has no readable text", details, err)
}

// NewRateLimitedError reports a client over its request budget.
func NewRateLimitedError(details string) *StandardError {
	return newError(ErrCodeRateLimited, "Too many requests", details, nil)
}

// NewSynthesisUnavailableError reports a timed out or unreachable reasoning service.
func NewSynthesisUnavailableError(err error) *StandardError {
	return newError(ErrCodeSynthesisUnavailable, "Reasoning service unavailable", causeText(err), err)
}

// NewSynthesisSchemaError reports a reasoning response that does not match the breakdown schema.
func NewSynthesisSchemaError(details string, err error) *StandardError {
	if details == "" {
		details = causeText(err)
	}
	return newError(ErrCodeSynthesisSchema, "Reasoning service returned an invalid breakdown", details, err)
}

// NewEmptyBreakdownError reports a breakdown with no usable line items.
func NewEmptyBreakdownError(dropped int) *StandardError {
	return newError(ErrCodeEmptyBreakdown, "Breakdown contains no valid line items",
		fmt.Sprintf("dropped %d invalid line items", dropped), nil).
		WithMetadata("droppedItems", dropped)
}

// NewRenderFailedError reports a spreadsheet rendering failure.
func NewRenderFailedError(err error) *StandardError {
	return newError(ErrCodeRenderFailed, "Failed to render spreadsheet", causeText(err), err)
}

// NewStorageUnavailableError reports a failed or timed out upload.
func NewStorageUnavailableError(err error) *StandardError {
	return newError(ErrCodeStorageUnavailable, "Object storage unavailable", causeText(err), err)
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", causeText(err), err)
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandardError finds a *StandardError in the chain or wraps err as an
// internal error. Nil in, nil out.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// HTTPStatus maps an error code to the response status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInput, ErrCodeUnreadableDocument:
		return http.StatusBadRequest
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// IsClientFault reports whether the caller caused the error.
func IsClientFault(code ErrorCode) bool {
	return HTTPStatus(code) < http.StatusInternalServerError
}

// IsRetryableErrorCode reports whether re-issuing the same request may succeed.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeSynthesisUnavailable, ErrCodeStorageUnavailable, ErrCodeRateLimited:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INPUT") || strings.Contains(codeStr, "DOCUMENT"):
		return "INPUT"
	case strings.Contains(codeStr, "SYNTHESIS") || strings.Contains(codeStr, "BREAKDOWN"):
		return "AI"
	case strings.Contains(codeStr, "RENDER"):
		return "RENDER"
	case strings.Contains(codeStr, "STORAGE"):
		return "STORAGE"
	case strings.Contains(codeStr, "RATE"):
		return "THROTTLING"
	default:
		return "OTHER"
	}
}
