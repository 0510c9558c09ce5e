package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docverify/internal/core/domain"
)

// DocumentAnalyzer is the inbound contract for the forgery detection pipeline.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, documentPath, userID string) (*domain.AnalysisResult, error)
}

// DocumentSubmitter accepts uploads for asynchronous analysis.
type DocumentSubmitter interface {
	Submit(ctx context.Context, userID, filename string, body io.Reader) (*domain.AnalysisRequest, error)
}

// DocumentStager stores an upload for inline processing without queueing it.
type DocumentStager interface {
	Stage(ctx context.Context, userID, filename string, body io.Reader) (*domain.AnalysisRequest, error)
}

// AnalysisProcessor runs one analysis request end to end and persists the outcome.
type AnalysisProcessor interface {
	Process(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisRecord, error)
}

// AnalysisReader is the inbound read model over persisted analyses.
type AnalysisReader interface {
	GetByDocument(ctx context.Context, documentID string) (*domain.AnalysisRecord, error)
	ListByUser(ctx context.Context, userID string) ([]domain.AnalysisRecord, error)
	StatsByUser(ctx context.Context, userID string) (domain.AnalysisStats, error)
}

// DocumentDownloader returns the upload behind an analyzed document.
type DocumentDownloader interface {
	Download(ctx context.Context, documentID string) (*domain.DocumentDownload, error)
}
