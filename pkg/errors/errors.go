// Package errors provides a structured error system for coldfetch with error codes, categories, and context.
package errors

import (
	stderr "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for retrieval operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration Errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingConfig    ErrorCode = "MISSING_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"

	// Request Validation Errors
	ErrCodeInvalidLocation ErrorCode = "INVALID_LOCATION"
	ErrCodeInvalidTier     ErrorCode = "INVALID_TIER"
	ErrCodeInvalidKey      ErrorCode = "INVALID_KEY"
	ErrCodeInvalidRequest  ErrorCode = "INVALID_REQUEST"

	// Connection Errors
	ErrCodeConnectionFailed  ErrorCode = "CONNECTION_FAILED"
	ErrCodeConnectionTimeout ErrorCode = "CONNECTION_TIMEOUT"
	ErrCodeNetworkError      ErrorCode = "NETWORK_ERROR"

	// Storage Backend Errors
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeObjectNotFound     ErrorCode = "OBJECT_NOT_FOUND"
	ErrCodeBucketNotFound     ErrorCode = "BUCKET_NOT_FOUND"
	ErrCodeInvalidObjectState ErrorCode = "INVALID_OBJECT_STATE"
	ErrCodeAccessDenied       ErrorCode = "ACCESS_DENIED"
	ErrCodeStorageRead        ErrorCode = "STORAGE_READ"
	ErrCodeSlowDown           ErrorCode = "SLOW_DOWN"

	// Local Filesystem Errors
	ErrCodeFileWrite ErrorCode = "FILE_WRITE"

	// Operation Errors
	ErrCodeOperationCanceled ErrorCode = "OPERATION_CANCELED"
	ErrCodeOperationTimeout  ErrorCode = "OPERATION_TIMEOUT"
	ErrCodeRetryExhausted    ErrorCode = "RETRY_EXHAUSTED"

	// Authentication Errors
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeCredentialsMissing   ErrorCode = "CREDENTIALS_MISSING"

	// Internal
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnknownError  ErrorCode = "UNKNOWN_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryRequest       ErrorCategory = "request"
	CategoryConnection    ErrorCategory = "connection"
	CategoryStorage       ErrorCategory = "storage"
	CategoryFilesystem    ErrorCategory = "filesystem"
	CategoryOperation     ErrorCategory = "operation"
	CategoryAuth          ErrorCategory = "auth"
	CategoryInternal      ErrorCategory = "internal"
)

// RetrievalError represents a structured error with context and metadata.
type RetrievalError struct {
	Code     ErrorCode         `json:"code"`
	Category ErrorCategory     `json:"category"`
	Message  string            `json:"message"`
	Context  map[string]string `json:"context,omitempty"`
	Cause    error             `json:"-"`

	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component"`
	Operation string    `json:"operation,omitempty"`

	// Error handling hints
	Retryable  bool `json:"retryable"`
	UserFacing bool `json:"user_facing"`
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, msg)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *RetrievalError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a RetrievalError carrying the same code.
func (e *RetrievalError) Is(target error) bool {
	if other, ok := target.(*RetrievalError); ok {
		return e.Code == other.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *RetrievalError) String() string {
	parts := []string{
		fmt.Sprintf("Code=%s", e.Code),
		fmt.Sprintf("Category=%s", e.Category),
		fmt.Sprintf("Message=%q", e.Message),
	}
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}
	return fmt.Sprintf("RetrievalError{%s}", strings.Join(parts, ", "))
}

// Sentinels for errors.Is comparisons. Only the code is compared.
var (
	ErrInvalidLocation      = &RetrievalError{Code: ErrCodeInvalidLocation}
	ErrInvalidTier          = &RetrievalError{Code: ErrCodeInvalidTier}
	ErrInvalidKey           = &RetrievalError{Code: ErrCodeInvalidKey}
	ErrBackendUnavailable   = &RetrievalError{Code: ErrCodeBackendUnavailable}
	ErrAuthenticationFailed = &RetrievalError{Code: ErrCodeAuthenticationFailed}
	ErrObjectNotFound       = &RetrievalError{Code: ErrCodeObjectNotFound}
	ErrOperationCanceled    = &RetrievalError{Code: ErrCodeOperationCanceled}
)

// NewError creates a new error with default values for the code.
func NewError(code ErrorCode, message string) *RetrievalError {
	return &RetrievalError{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Timestamp:  time.Now(),
		Context:    make(map[string]string),
		Retryable:  IsRetryableByDefault(code),
		UserFacing: IsUserFacingByDefault(code),
	}
}

// Wrap creates a new error with the given cause.
func Wrap(code ErrorCode, message string, cause error) *RetrievalError {
	return NewError(code, message).WithCause(cause)
}

// CodeOf returns the code of the outermost RetrievalError in err's chain,
// or ErrCodeUnknownError when there is none.
func CodeOf(err error) ErrorCode {
	var re *RetrievalError
	if stderr.As(err, &re) {
		return re.Code
	}
	return ErrCodeUnknownError
}

// HasCode reports whether any RetrievalError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	return stderr.Is(err, &RetrievalError{Code: code})
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidConfig, ErrCodeMissingConfig, ErrCodeConfigValidation, ErrCodeConfigLoad:
		return CategoryConfiguration
	case ErrCodeInvalidLocation, ErrCodeInvalidTier, ErrCodeInvalidKey, ErrCodeInvalidRequest:
		return CategoryRequest
	case ErrCodeConnectionFailed, ErrCodeConnectionTimeout, ErrCodeNetworkError:
		return CategoryConnection
	case ErrCodeBackendUnavailable, ErrCodeObjectNotFound, ErrCodeBucketNotFound,
		ErrCodeInvalidObjectState, ErrCodeAccessDenied, ErrCodeStorageRead, ErrCodeSlowDown:
		return CategoryStorage
	case ErrCodeFileWrite:
		return CategoryFilesystem
	case ErrCodeOperationCanceled, ErrCodeOperationTimeout, ErrCodeRetryExhausted:
		return CategoryOperation
	case ErrCodeAuthenticationFailed, ErrCodeCredentialsMissing:
		return CategoryAuth
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
func IsRetryableByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeConnectionTimeout, ErrCodeConnectionFailed, ErrCodeNetworkError,
		ErrCodeOperationTimeout, ErrCodeSlowDown, ErrCodeStorageRead, ErrCodeInternalError:
		return true
	}
	return false
}

// IsUserFacingByDefault determines if an error should be shown to users.
func IsUserFacingByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeInvalidConfig, ErrCodeMissingConfig, ErrCodeConfigValidation,
		ErrCodeInvalidLocation, ErrCodeInvalidTier, ErrCodeInvalidKey,
		ErrCodeObjectNotFound, ErrCodeBucketNotFound, ErrCodeAccessDenied,
		ErrCodeBackendUnavailable, ErrCodeAuthenticationFailed, ErrCodeCredentialsMissing,
		ErrCodeFileWrite:
		return true
	}
	return false
}

// WithContext adds contextual information to an error
func (e *RetrievalError) WithContext(key, value string) *RetrievalError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *RetrievalError) WithComponent(component string) *RetrievalError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *RetrievalError) WithOperation(operation string) *RetrievalError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *RetrievalError) WithCause(cause error) *RetrievalError {
	e.Cause = cause
	return e
}

// GetRecommendation returns a user-friendly recommendation for fixing the error
func (e *RetrievalError) GetRecommendation() string {
	recommendations := map[ErrorCode]string{
		ErrCodeInvalidLocation: "Use a location of the form s3://bucket/prefix.",
		ErrCodeInvalidTier:     "Use one of the restore tiers Expedited, Standard or Bulk.",
		ErrCodeBackendUnavailable: "The storage service did not answer after several attempts. " +
			"Check network connectivity and the endpoint, then rerun the job.",
		ErrCodeAccessDenied: "Credentials lack necessary permissions. " +
			"Check your IAM policy grants s3:ListBucket, s3:GetObject and s3:RestoreObject.",
		ErrCodeBucketNotFound: "The bucket does not exist or is not accessible. " +
			"Verify the bucket name and region.",
		ErrCodeAuthenticationFailed: "AWS authentication failed. " +
			"Verify your access key ID and secret access key, or run 'aws configure'.",
		ErrCodeCredentialsMissing: "AWS credentials not found. " +
			"Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY, select a profile, " +
			"or configure credentials in ~/.aws/credentials.",
		ErrCodeInvalidObjectState: "The object is archived and has not been restored yet. " +
			"Rerun the retrieval once the restore has completed.",
		ErrCodeInvalidConfig: "Configuration validation failed. " +
			"Check your configuration file syntax and required parameters.",
	}

	if rec, ok := recommendations[e.Code]; ok {
		return rec
	}
	return "Please check the error message for details."
}

// UserFacingMessage returns a simplified message suitable for end users
func (e *RetrievalError) UserFacingMessage() string {
	if !e.UserFacing {
		return "An internal error occurred. Please contact support if this persists."
	}

	messages := map[ErrorCode]string{
		ErrCodeInvalidLocation:      "Invalid storage location",
		ErrCodeInvalidTier:          "Invalid restore tier",
		ErrCodeObjectNotFound:       "Object not found",
		ErrCodeBucketNotFound:       "Bucket not found",
		ErrCodeAccessDenied:         "Access denied - check permissions",
		ErrCodeBackendUnavailable:   "Storage service unavailable",
		ErrCodeAuthenticationFailed: "Authentication failed",
		ErrCodeCredentialsMissing:   "AWS credentials not configured",
	}

	if msg, ok := messages[e.Code]; ok {
		return msg
	}
	return e.Message
}
