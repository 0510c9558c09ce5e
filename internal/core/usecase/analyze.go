package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/docverify/internal/core/domain"
	"github.com/kirillkom/docverify/internal/core/ports"
)

// AnalyzeDocumentUseCase composes preprocessing, scoring, OCR and quality
// inspection into a single risk-classified result. It does not persist.
type AnalyzeDocumentUseCase struct {
	preprocessor ports.Preprocessor
	scorer       ports.Scorer
	extractor    ports.TextExtractor
	inspector    ports.QualityInspector
	clock        domain.Clock
}

func NewAnalyzeDocumentUseCase(
	preprocessor ports.Preprocessor,
	scorer ports.Scorer,
	extractor ports.TextExtractor,
	inspector ports.QualityInspector,
	clock domain.Clock,
) *AnalyzeDocumentUseCase {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &AnalyzeDocumentUseCase{
		preprocessor: preprocessor,
		scorer:       scorer,
		extractor:    extractor,
		inspector:    inspector,
		clock:        clock,
	}
}

// Analyze runs every step in order; the first failure aborts with its error kind intact.
func (uc *AnalyzeDocumentUseCase) Analyze(ctx context.Context, documentPath, _ string) (*domain.AnalysisResult, error) {
	preprocessed, err := uc.preprocess(ctx, documentPath)
	if err != nil {
		return nil, err
	}

	score, err := uc.score(ctx, preprocessed)
	if err != nil {
		return nil, err
	}

	text, err := uc.extractText(ctx, preprocessed)
	if err != nil {
		return nil, err
	}

	quality, err := uc.inspectQuality(ctx, preprocessed)
	if err != nil {
		return nil, err
	}

	return &domain.AnalysisResult{
		Score:       score,
		TextContent: text,
		Quality:     quality,
		Timestamp:   uc.clock.Now(),
		Status:      domain.ClassifyRisk(score.ForgeryProbability),
	}, nil
}

func (uc *AnalyzeDocumentUseCase) preprocess(ctx context.Context, documentPath string) (string, error) {
	out, err := uc.preprocessor.Preprocess(ctx, documentPath)
	if err != nil {
		return "", fmt.Errorf("preprocess document: %w", err)
	}
	return out, nil
}

func (uc *AnalyzeDocumentUseCase) score(ctx context.Context, path string) (domain.ScoreReport, error) {
	report, err := uc.scorer.Score(ctx, path)
	if err != nil {
		return domain.ScoreReport{}, fmt.Errorf("score document: %w", err)
	}
	return report, nil
}

func (uc *AnalyzeDocumentUseCase) extractText(ctx context.Context, path string) (string, error) {
	text, err := uc.extractor.Extract(ctx, path)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return text, nil
}

func (uc *AnalyzeDocumentUseCase) inspectQuality(ctx context.Context, path string) (domain.QualityReport, error) {
	quality, err := uc.inspector.InspectQuality(ctx, path)
	if err != nil {
		return domain.QualityReport{}, fmt.Errorf("inspect quality: %w", err)
	}
	return quality, nil
}
