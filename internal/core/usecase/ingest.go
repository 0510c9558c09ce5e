package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/docverify/internal/core/domain"
	"github.com/kirillkom/docverify/internal/core/ports"
)

type IngestDocumentUseCase struct {
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	clock   domain.Clock
}

func NewIngestDocumentUseCase(
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	clock domain.Clock,
) *IngestDocumentUseCase {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &IngestDocumentUseCase{
		storage: storage,
		queue:   queue,
		clock:   clock,
	}
}

// Submit stores the upload and queues it for analysis.
func (uc *IngestDocumentUseCase) Submit(
	ctx context.Context,
	userID, filename string,
	body io.Reader,
) (*domain.AnalysisRequest, error) {
	req, err := uc.store(ctx, userID, filename, body)
	if err != nil {
		return nil, err
	}

	if err := uc.queue.PublishAnalysisRequested(ctx, *req); err != nil {
		return nil, fmt.Errorf("publish analysis request: %w", err)
	}
	return req, nil
}

// Stage stores the upload without queueing it, for inline processing.
func (uc *IngestDocumentUseCase) Stage(
	ctx context.Context,
	userID, filename string,
	body io.Reader,
) (*domain.AnalysisRequest, error) {
	return uc.store(ctx, userID, filename, body)
}

func (uc *IngestDocumentUseCase) store(
	ctx context.Context,
	userID, filename string,
	body io.Reader,
) (*domain.AnalysisRequest, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit document", errors.New("user id is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	return &domain.AnalysisRequest{
		DocumentID:  id,
		UserID:      userID,
		StorageKey:  storageKey,
		Filename:    filename,
		RequestedAt: uc.clock.Now(),
	}, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "document.bin"
	}
	return base
}
