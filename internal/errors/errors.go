// Package errors provides structured error types for the teamhub pipeline.
// All errors include a category, code, message, and retryable flag so the
// orchestrator can tell a transient failure from one that needs a human.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCategory classifies errors by pipeline concern.
type ErrorCategory string

const (
	ErrCategoryFetch      ErrorCategory = "FETCH"
	ErrCategoryStore      ErrorCategory = "STORE"
	ErrCategoryLedger     ErrorCategory = "LEDGER"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Fetch codes
	CodeUpstreamStatus      = "UPSTREAM_STATUS"
	CodeUpstreamUnreachable = "UPSTREAM_UNREACHABLE"
	CodeUpstreamDecode      = "UPSTREAM_DECODE"

	// Store codes
	CodeNotFound     = "NOT_FOUND"
	CodeWriteFailed  = "WRITE_FAILED"
	CodeReadFailed   = "READ_FAILED"
	CodeVerifyFailed = "VERIFY_FAILED"

	// Ledger codes
	CodeLedgerCorrupt = "LEDGER_CORRUPT"

	// Validation codes
	CodeInvalidRecord = "INVALID_RECORD"
	CodeInvalidConfig = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Detail keys attached to stage failures.
const (
	DetailDataset = "dataset"
	DetailRunDate = "run_date"
	DetailStage   = "stage"
	DetailTable   = "table"
	DetailStatus  = "status_code"
)

// PipelineError is the structured error type used throughout the pipeline.
type PipelineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s:%s] %s", e.Category, e.Code, e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Details[k])
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(category ErrorCategory, code, message string) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with the given details merged in.
func (e *PipelineError) WithDetails(details map[string]interface{}) *PipelineError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	for k, v := range details {
		cp.Details[k] = v
	}
	return &cp
}

// Sentinels for errors.Is matching. Only category and code are compared.
var (
	ErrFetch         = New(ErrCategoryFetch, CodeUpstreamStatus, "fetch failed")
	ErrNotFound      = New(ErrCategoryStore, CodeNotFound, "not found")
	ErrInvalidRecord = New(ErrCategoryValidation, CodeInvalidRecord, "invalid record")
	ErrStoreWrite    = New(ErrCategoryStore, CodeWriteFailed, "store write failed")
	ErrVerify        = New(ErrCategoryStore, CodeVerifyFailed, "post-write verification failed")
)

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// GetDetails extracts the details of the outermost PipelineError in the chain.
func GetDetails(err error) map[string]interface{} {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Details
	}
	return nil
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryFetch:
		return code != CodeUpstreamDecode
	case category == ErrCategoryStore && code == CodeWriteFailed:
		return true
	case category == ErrCategoryStore && code == CodeReadFailed:
		return true
	case category == ErrCategoryStore && code == CodeVerifyFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

// NewFetchError reports a non-success upstream status.
func NewFetchError(statusCode int, endpoint string) *PipelineError {
	return New(ErrCategoryFetch, CodeUpstreamStatus,
		fmt.Sprintf("unable to fetch %s: status code %d", endpoint, statusCode)).
		WithDetails(map[string]interface{}{DetailStatus: statusCode})
}

func NewUnreachableError(endpoint string, cause error) *PipelineError {
	return Wrap(ErrCategoryFetch, CodeUpstreamUnreachable, fmt.Sprintf("unable to reach %s", endpoint), cause)
}

func NewNotFoundError(what string) *PipelineError {
	return New(ErrCategoryStore, CodeNotFound, what+" not found")
}

func NewInvalidRecordError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryValidation, CodeInvalidRecord, message, cause)
}

func NewStoreWriteError(table string, cause error) *PipelineError {
	return Wrap(ErrCategoryStore, CodeWriteFailed, "failed to write "+table, cause).
		WithDetails(map[string]interface{}{DetailTable: table})
}

func NewStoreReadError(table string, cause error) *PipelineError {
	return Wrap(ErrCategoryStore, CodeReadFailed, "failed to read "+table, cause).
		WithDetails(map[string]interface{}{DetailTable: table})
}

func NewVerifyError(table string, want, got int64) *PipelineError {
	return New(ErrCategoryStore, CodeVerifyFailed,
		fmt.Sprintf("%s holds %d rows after write, expected %d", table, got, want)).
		WithDetails(map[string]interface{}{DetailTable: table})
}

func NewLedgerCorruptError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryLedger, CodeLedgerCorrupt, message, cause)
}

func NewInvalidConfigError(cause error) *PipelineError {
	return Wrap(ErrCategoryValidation, CodeInvalidConfig, "invalid configuration", cause)
}

func NewInternalError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
