package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/docverify/internal/core/domain"
	"github.com/kirillkom/docverify/internal/core/ports"
)

// recordLookup is the slice of the record store a download needs.
type recordLookup interface {
	GetByDocument(ctx context.Context, documentID string) (*domain.AnalysisRecord, error)
}

type DownloadDocumentUseCase struct {
	records recordLookup
	storage ports.ObjectStorage
}

func NewDownloadDocumentUseCase(records recordLookup, storage ports.ObjectStorage) *DownloadDocumentUseCase {
	return &DownloadDocumentUseCase{records: records, storage: storage}
}

// Download opens the upload recorded on the document's latest analysis.
func (uc *DownloadDocumentUseCase) Download(ctx context.Context, documentID string) (*domain.DocumentDownload, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "download document", errors.New("document id is required"))
	}
	rec, err := uc.records.GetByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	key := rec.Result.SourceKey
	if key == "" {
		return nil, domain.WrapError(domain.ErrAnalysisNotFound, "download document",
			fmt.Errorf("no stored upload recorded for document %s", documentID))
	}

	body, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open stored document: %w", err)
	}
	return &domain.DocumentDownload{Filename: downloadName(key, documentID), Body: body}, nil
}

// downloadName strips the "<documentID>_" prefix ingestion puts on keys.
func downloadName(key, documentID string) string {
	if name, ok := strings.CutPrefix(key, documentID+"_"); ok && name != "" {
		return name
	}
	return key
}
