package resilience

import "context"

// Retrier adapts an Executor to the single-method retry contract the use
// cases depend on.
type Retrier struct {
	executor   *Executor
	classifier ErrorClassifier
}

func NewRetrier(executor *Executor, classifier ErrorClassifier) *Retrier {
	if classifier == nil {
		classifier = ClassifyDomainError
	}
	return &Retrier{executor: executor, classifier: classifier}
}

func (r *Retrier) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	if r == nil || r.executor == nil {
		return fn(ctx)
	}
	return WrapTemporary(operation, r.executor.Execute(ctx, operation, fn, r.classifier), r.classifier)
}
