package lingoflow

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCancelled is returned when a job stops because its context was cancelled.
// It is never reported as a job failure.
var ErrCancelled = errors.New("job cancelled")

// ValidationError rejects a request before any work starts.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ProviderError indicates a remote translation failure (API error, rate limit, etc.).
type ProviderError struct {
	Message    string
	Cause      error
	StatusCode int  // HTTP-equivalent status, 0 when no response was received
	Retryable  bool // Whether the operation can be retried
}

func (e *ProviderError) Error() string {
	msg := "provider error: " + e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewStatusError builds a ProviderError for an HTTP status, marking 429 and
// 5xx as retryable.
func NewStatusError(status int, message string, cause error) *ProviderError {
	return &ProviderError{
		Message:    message,
		Cause:      cause,
		StatusCode: status,
		Retryable:  IsTransientStatus(status),
	}
}

// IsTransientStatus reports whether a status is expected to resolve on retry.
func IsTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

// Job failure reasons carried by JobError and terminal error events.
const (
	ReasonValidation      = "validation"
	ReasonBudgetExhausted = "budget_exhausted"
	ReasonInvalidDocument = "invalid_document"
	ReasonCheckpoint      = "checkpoint"
	ReasonCancelled       = "cancelled"
	ReasonInternal        = "internal"
)

// JobError aborts a whole job.
type JobError struct {
	Reason  string
	Message string
	Cause   error
}

func (e *JobError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("job failed (%s): %s: %v", e.Reason, e.Message, e.Cause)
	}
	return fmt.Sprintf("job failed (%s): %s", e.Reason, e.Message)
}

func (e *JobError) Unwrap() error {
	return e.Cause
}

// CheckpointError indicates a checkpoint store failure.
type CheckpointError struct {
	Op    string
	Name  string
	Cause error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint error: %s %s: %v", e.Op, e.Name, e.Cause)
}

func (e *CheckpointError) Unwrap() error {
	return e.Cause
}

// CacheError indicates a cache operation failure.
type CacheError struct {
	Message string
	Cause   error
}

func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("cache error: %s", e.Message)
}

func (e *CacheError) Unwrap() error {
	return e.Cause
}

// ProcessorError indicates a content processing failure (parse error, etc.).
type ProcessorError struct {
	Message     string
	Cause       error
	ContentType string // The type of content that failed to process
}

func (e *ProcessorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("processor error (%s): %s: %v", e.ContentType, e.Message, e.Cause)
	}
	return fmt.Sprintf("processor error (%s): %s", e.ContentType, e.Message)
}

func (e *ProcessorError) Unwrap() error {
	return e.Cause
}

// FailureReason classifies an error for terminal error events.
func FailureReason(err error) string {
	var validationErr *ValidationError
	var jobErr *JobError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return ReasonCancelled
	case errors.As(err, &validationErr):
		return ReasonValidation
	case errors.As(err, &jobErr):
		return jobErr.Reason
	default:
		return ReasonInternal
	}
}
