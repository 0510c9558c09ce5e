package scoring

import (
	"context"
	"errors"

	"github.com/kirillkom/docverify/internal/core/domain"
	"github.com/kirillkom/docverify/internal/core/ports"
	"github.com/kirillkom/docverify/internal/infrastructure/resilience"
)

const operationScore = "scorer.score"

// Resilient retries a Scorer whose process exits non-zero. Parse failures are
// deterministic and pass through untouched.
type Resilient struct {
	next     ports.Scorer
	executor *resilience.Executor
}

func NewResilient(next ports.Scorer, executor *resilience.Executor) *Resilient {
	return &Resilient{next: next, executor: executor}
}

func (r *Resilient) Score(ctx context.Context, path string) (domain.ScoreReport, error) {
	if r.executor == nil {
		return r.next.Score(ctx, path)
	}

	var report domain.ScoreReport
	err := r.executor.Execute(ctx, operationScore, func(ctx context.Context) error {
		out, err := r.next.Score(ctx, path)
		if err != nil {
			return err
		}
		report = out
		return nil
	}, classifyScoringError)
	if err != nil {
		if resilience.IsCircuitOpen(err) {
			return domain.ScoreReport{}, domain.WrapError(domain.ErrTemporary, operationScore, err)
		}
		return domain.ScoreReport{}, err
	}
	return report, nil
}

func classifyScoringError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case domain.IsKind(err, domain.ErrScoringProcess):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case domain.IsKind(err, domain.ErrScoringParse):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	default:
		return resilience.ClassifyDomainError(err)
	}
}
