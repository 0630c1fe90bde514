package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType is the broad category of a failure. Callers decide recoverability
// from the type and code, never from the message.
type ErrorType string

const (
	TypeNetwork  ErrorType = "network"  // transport failure, always retryable
	TypeAPI      ErrorType = "api"      // remote rejected the request
	TypeParse    ErrorType = "parse"    // source text could not be interpreted
	TypeInternal ErrorType = "internal" // local precondition or unexpected failure
)

// ErrorCode is the sub-code carried by an error.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrInternal       ErrorCode = "INTERNAL"        // 500

	// Remote API sub-codes.
	ErrMissing        ErrorCode = "missing"         // page does not exist
	ErrInvalidTitle   ErrorCode = "invalid"         // bad page title
	ErrEditConflict   ErrorCode = "edit-conflict"   // base revision is stale
	ErrBlocked        ErrorCode = "blocked"         // user is blocked
	ErrSpamBlacklist  ErrorCode = "spam-blacklist"  // link rejected by the spam blacklist
	ErrTitleBlacklist ErrorCode = "title-blacklist" // title rejected by the title blacklist
	ErrAbuseFilter    ErrorCode = "abuse-filter"    // edit rejected by an abuse filter
	ErrNoSuccess      ErrorCode = "no-success"      // request returned without a success marker
	ErrAPI            ErrorCode = "error"           // any other API error

	// Local sub-codes.
	ErrNetwork         ErrorCode = "network"
	ErrSectionNotFound ErrorCode = "section-not-found"
	ErrSizeLimit       ErrorCode = "size-limit"
)

// CDError represents a structured error with type, code, status, and details.
type CDError struct {
	Type    ErrorType
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *CDError) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Type, e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *CDError {
	return &CDError{
		Type:    TypeInternal,
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing local record.
func NewNotFound(identifier string) *CDError {
	return &CDError{
		Type:    TypeInternal,
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewNetwork creates a transport-level error.
func NewNetwork(err error) *CDError {
	msg := "network error"
	if err != nil {
		msg = err.Error()
	}
	return &CDError{
		Type:    TypeNetwork,
		Code:    ErrNetwork,
		Status:  503,
		Message: msg,
	}
}

// NewAPI creates an error for a request the remote API rejected.
// info is the human-readable text returned by the API, if any.
func NewAPI(code ErrorCode, info string, details map[string]any) *CDError {
	if info == "" {
		info = string(code)
	}
	return &CDError{
		Type:    TypeAPI,
		Code:    code,
		Status:  502,
		Message: info,
		Details: details,
	}
}

// NewLocateSection creates the parse error raised when no candidate section in
// the page code scores above the acceptance threshold.
func NewLocateSection(headline string) *CDError {
	return &CDError{
		Type:    TypeParse,
		Code:    ErrSectionNotFound,
		Status:  422,
		Message: fmt.Sprintf("couldn't locate section %q in the page code", headline),
		Details: map[string]any{"headline": headline},
	}
}

// NewSizeLimit creates an error for a value that exceeds a hard size limit
// before a remote call is attempted.
func NewSizeLimit(action string, max, actual int) *CDError {
	return &CDError{
		Type:    TypeInternal,
		Code:    ErrSizeLimit,
		Status:  413,
		Message: fmt.Sprintf("%s value exceeds maximum size: %d bytes (max %d)", action, actual, max),
		Details: map[string]any{"action": action, "max_bytes": max, "actual_bytes": actual},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The original error is kept in Details for logging only.
func NewInternal(err error) *CDError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &CDError{
		Type:    TypeInternal,
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// As extracts a *CDError from err, following wrapped errors.
func As(err error) (*CDError, bool) {
	var cdErr *CDError
	if stderrors.As(err, &cdErr) {
		return cdErr, true
	}
	return nil, false
}

// Is checks if an error is a CDError with the given code.
func Is(err error, code ErrorCode) bool {
	if cdErr, ok := As(err); ok {
		return cdErr.Code == code
	}
	return false
}

// IsType checks if an error is a CDError of the given type.
func IsType(err error, typ ErrorType) bool {
	if cdErr, ok := As(err); ok {
		return cdErr.Type == typ
	}
	return false
}
