// Package ai holds types shared across the STT, TTS, LLM, and VAD provider
// interfaces, chiefly the retryable/fatal error classification providers use
// to tell callers whether an operation is worth retrying.
package ai

import (
	"errors"
	"time"
)

var (
	// ErrRecoverable marks temporary failures such as network timeouts or
	// rate limits. Callers should retry with backoff.
	ErrRecoverable = errors.New("recoverable AI provider error")

	// ErrFatal marks permanent failures such as a bad API key or an
	// unsupported format. Callers should fail fast.
	ErrFatal = errors.New("fatal AI provider error")
)

// IsRecoverable reports whether err should be retried.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal reports whether err is permanent.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// RetryConfig tunes retry loops around recoverable provider errors.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterPercent float32 // 0.0 to 1.0
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries:    3,
	InitialDelay:  100 * time.Millisecond,
	MaxDelay:      5 * time.Second,
	BackoffFactor: 2.0,
	JitterPercent: 0.1,
}

// RetryableError attaches a retry classification to an underlying error.
// Unwrap yields ErrRecoverable or ErrFatal so errors.Is classification works
// through wrapping.
type RetryableError struct {
	Underlying error
	Retryable  bool
	Message    string
}

func (e *RetryableError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Underlying.Error()
}

func (e *RetryableError) Unwrap() error {
	if e.Retryable {
		return ErrRecoverable
	}
	return ErrFatal
}

func NewRecoverableError(underlying error, message string) error {
	return &RetryableError{Underlying: underlying, Retryable: true, Message: message}
}

func NewFatalError(underlying error, message string) error {
	return &RetryableError{Underlying: underlying, Retryable: false, Message: message}
}
