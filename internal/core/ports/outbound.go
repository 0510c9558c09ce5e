package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/docverify/internal/core/domain"
)

// Preprocessor writes a canonical copy of an input image and returns its path.
type Preprocessor interface {
	Preprocess(ctx context.Context, inputPath string) (string, error)
}

// QualityInspector reads image metadata without modifying the file.
type QualityInspector interface {
	InspectQuality(ctx context.Context, path string) (domain.QualityReport, error)
}

// ScratchSweeper removes expired transient files.
type ScratchSweeper interface {
	SweepExpired(ctx context.Context, maxAge time.Duration) (int, error)
}

// TextExtractor runs OCR over an image file. No detected text is not an error.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Scorer produces a forgery score report for a preprocessed image.
type Scorer interface {
	Score(ctx context.Context, path string) (domain.ScoreReport, error)
}

// AnalysisRecordStore persists analysis records and answers per-user queries.
type AnalysisRecordStore interface {
	Save(ctx context.Context, userID, documentID string, result domain.AnalysisResult) (*domain.AnalysisRecord, error)
	GetByDocument(ctx context.Context, documentID string) (*domain.AnalysisRecord, error)
	ListByUser(ctx context.Context, userID string) ([]domain.AnalysisRecord, error)
	StatsByUser(ctx context.Context, userID string) (domain.AnalysisStats, error)
	CleanupOlderThan(ctx context.Context, maxAge time.Duration) (int, error)
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes analysis requests.
type MessageQueue interface {
	PublishAnalysisRequested(ctx context.Context, req domain.AnalysisRequest) error
	SubscribeAnalysisRequested(ctx context.Context, handler func(context.Context, domain.AnalysisRequest) error) error
}
