package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/docverify/internal/core/domain"
)

// ClassifyDomainError retries only errors of kind ErrTemporary or an open
// circuit. Caller mistakes and cancellations never count against the breaker.
func ClassifyDomainError(err error) ErrorClassification {
	switch {
	case err == nil:
		return ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassification{Retryable: false, RecordFailure: false}
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrImageDecode):
		return ErrorClassification{Retryable: false, RecordFailure: false}
	case IsCircuitOpen(err), domain.IsKind(err, domain.ErrTemporary):
		return ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
}

// WrapTemporary marks retryable failures as ErrTemporary so the HTTP layer
// and the worker can tell them apart from permanent ones.
func WrapTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier == nil {
		classifier = ClassifyDomainError
	}
	if classifier(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
