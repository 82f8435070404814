package recipe

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode is a stable, externally visible failure or notice code.
type ErrorCode string

// Error taxonomy.
const (
	CodeLinkNotFound               ErrorCode = "LinkNotFound"
	CodeDomainNotSupported         ErrorCode = "DomainNotSupported"
	CodeRobotsDisallowed           ErrorCode = "RobotsDisallowed"
	CodeFetchTimeout               ErrorCode = "FetchTimeout"
	CodeFetchHTTPError             ErrorCode = "FetchHTTPError"
	CodeRenderError                ErrorCode = "RenderError"
	CodeDomainCircuitOpen          ErrorCode = "DomainCircuitOpen"
	CodeExtractionLowConfidence    ErrorCode = "ExtractionLowConfidence"
	CodeExtractionFailed           ErrorCode = "ExtractionFailed"
	CodeDuplicateRecipe            ErrorCode = "DuplicateRecipe"
	CodeNutritionCalculationFailed ErrorCode = "NutritionCalculationFailed"
	CodeRetryBudgetExceeded        ErrorCode = "RetryBudgetExceeded"
	CodeCancelled                  ErrorCode = "Cancelled"
	CodeAIUnavailable              ErrorCode = "AIUnavailable"
	CodePersistenceFailed          ErrorCode = "PersistenceFailed"
	CodeInternal                   ErrorCode = "Internal"
)

// Sentinel errors shared by stores and the orchestrator.
var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobExists         = errors.New("job already exists")
	ErrInvalidTransition = errors.New("invalid job transition")
	ErrForbidden         = errors.New("job belongs to another user")
	ErrRecipeNotFound    = errors.New("recipe not found")
	ErrNoRecipe          = errors.New("no recipe found")
	ErrQueueClosed       = errors.New("queue closed")
	ErrDuplicateRecipe   = errors.New("recipe already saved for this owner and url")

	// ErrRenderCapacity marks render failures that never reached the site,
	// such as no free browser session.
	ErrRenderCapacity = errors.New("no browser session available")
)

// ImportError is the typed failure carried through the pipeline.
type ImportError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	// RetryAt, when set, is the earliest moment a retry makes sense.
	RetryAt time.Time
	Err     error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// NewError builds an ImportError whose retryability follows the code.
func NewError(code ErrorCode, message string, cause error) *ImportError {
	return &ImportError{
		Code:      code,
		Message:   message,
		Retryable: retryableByDefault(code),
		Err:       cause,
	}
}

// HTTPStatusError classifies a non-2xx fetch response.
// 5xx and 429 are transient; other statuses are permanent.
func HTTPStatusError(status int, url string) *ImportError {
	return &ImportError{
		Code:      CodeFetchHTTPError,
		Message:   fmt.Sprintf("%s returned HTTP %d", url, status),
		Retryable: status >= http.StatusInternalServerError || status == http.StatusTooManyRequests,
	}
}

// CircuitOpenError signals that a domain is cooling down until retryAt.
func CircuitOpenError(domain string, retryAt time.Time) *ImportError {
	return &ImportError{
		Code:      CodeDomainCircuitOpen,
		Message:   fmt.Sprintf("%s is temporarily unavailable", domain),
		Retryable: true,
		RetryAt:   retryAt,
	}
}

func retryableByDefault(code ErrorCode) bool {
	switch code {
	case CodeFetchTimeout, CodeRenderError, CodeDomainCircuitOpen,
		CodeAIUnavailable, CodePersistenceFailed:
		return true
	default:
		return false
	}
}

// AsImportError extracts the ImportError from a chain.
func AsImportError(err error) (*ImportError, bool) {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// CodeOf returns the taxonomy code of err, or CodeInternal.
func CodeOf(err error) ErrorCode {
	if ie, ok := AsImportError(err); ok {
		return ie.Code
	}
	return CodeInternal
}

// IsRetryable reports whether err may succeed on a later attempt.
func IsRetryable(err error) bool {
	if ie, ok := AsImportError(err); ok {
		return ie.Retryable
	}
	return false
}

// IsTransient reports whether a fetch failure should count toward the
// domain's circuit breaker.
func IsTransient(err error) bool {
	ie, ok := AsImportError(err)
	if !ok || errors.Is(err, ErrRenderCapacity) {
		return false
	}
	switch ie.Code {
	case CodeFetchTimeout, CodeRenderError, CodeFetchHTTPError:
		return ie.Retryable
	default:
		return false
	}
}

// PublicMessage renders err for status responses without internal detail.
func PublicMessage(err error) string {
	if ie, ok := AsImportError(err); ok {
		return ie.Message
	}
	return "internal error"
}
