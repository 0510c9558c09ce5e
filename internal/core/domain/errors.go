package domain

import (
	"errors"
	"fmt"
)

var (
	ErrImageDecode      = errors.New("image decode failed")
	ErrExtraction       = errors.New("text extraction failed")
	ErrScoringProcess   = errors.New("scoring process failed")
	ErrScoringParse     = errors.New("scoring output unparseable")
	ErrStorage          = errors.New("storage failure")
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ScoringProcessError reports a scorer that exited non-zero. Stderr is kept verbatim.
type ScoringProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *ScoringProcessError) Error() string {
	return fmt.Sprintf("%s: exit code %d: %s", ErrScoringProcess.Error(), e.ExitCode, e.Stderr)
}

func (e *ScoringProcessError) Is(target error) bool {
	return target == ErrScoringProcess
}

var kindLabels = []struct {
	kind  error
	label string
}{
	{ErrImageDecode, "image_decode"},
	{ErrExtraction, "extraction"},
	{ErrScoringProcess, "scoring_process"},
	{ErrScoringParse, "scoring_parse"},
	{ErrStorage, "storage"},
	{ErrAnalysisNotFound, "not_found"},
	{ErrInvalidInput, "invalid_input"},
	{ErrTemporary, "temporary"},
}

// KindOf returns a stable label for the first known kind found in err's chain.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kindLabels {
		if errors.Is(err, k.kind) {
			return k.label
		}
	}
	return "internal"
}
