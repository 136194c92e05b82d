package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

// StatusCoder is implemented by adapter errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// RetryableHTTPStatus reports statuses worth another attempt.
func RetryableHTTPStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ClassifyHTTP classifies errors from JSON-over-HTTP dependencies.
// Cancellation is neither retried nor counted against the breaker; a
// non-retryable status is the caller's fault and is not counted either.
func ClassifyHTTP(err error) ErrorClassification {
	switch {
	case err == nil:
		return ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassification{}
	case IsCircuitOpen(err):
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var status StatusCoder
	if errors.As(err, &status) {
		if RetryableHTTPStatus(status.HTTPStatus()) {
			return ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return ErrorClassification{}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return ErrorClassification{RecordFailure: true}
}

// MarkTemporary tags err with domain.ErrTemporary when classifier considers
// it retryable, so callers can tell transient outages from bad requests.
func MarkTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier == nil {
		classifier = recordOnly
	}
	if classifier(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
