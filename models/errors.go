package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses, relay faults and internal error handling.
const (
	// Drive taxonomy. These are absorbed at the Page Driver / Extractor
	// boundary and never reach the API caller as failures.
	ErrCodeNoContext         = "NO_CONTEXT"
	ErrCodeNavigationTimeout = "NAVIGATION_TIMEOUT"
	ErrCodeExtractionMiss    = "EXTRACTION_MISS"
	ErrCodeParseMiss         = "PARSE_MISS"
	ErrCodeInjectionFault    = "INJECTION_FAULT"

	// API-facing codes.
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// DriveError is the internal error type carrying a taxonomy code and the
// source it happened on. It supports error wrapping via Unwrap.
type DriveError struct {
	Code    string
	Source  string
	Message string
	Err     error // wrapped original error
}

func (e *DriveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Source, e.Message)
}

func (e *DriveError) Unwrap() error {
	return e.Err
}

// NewDriveError creates a new DriveError.
func NewDriveError(code, source, message string, err error) *DriveError {
	return &DriveError{Code: code, Source: source, Message: message, Err: err}
}

// CodeOf returns the taxonomy code of err, or ErrCodeInternal when err is not
// a *DriveError.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var de *DriveError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}

// ErrorDetail provides structured error information in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
