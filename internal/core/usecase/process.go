package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/docverify/internal/core/domain"
	"github.com/kirillkom/docverify/internal/core/ports"
)

// Retrier runs fn under a caller-side retry policy.
type Retrier interface {
	Do(ctx context.Context, operation string, fn func(context.Context) error) error
}

// ProcessAnalysisUseCase pulls a stored upload into the scratch directory,
// analyzes it and persists the outcome. Failed runs persist nothing.
type ProcessAnalysisUseCase struct {
	storage    ports.ObjectStorage
	analyzer   ports.DocumentAnalyzer
	store      ports.AnalysisRecordStore
	scratchDir string
	retrier    Retrier
	clock      domain.Clock
}

func NewProcessAnalysisUseCase(
	storage ports.ObjectStorage,
	analyzer ports.DocumentAnalyzer,
	store ports.AnalysisRecordStore,
	scratchDir string,
	retrier Retrier,
	clock domain.Clock,
) *ProcessAnalysisUseCase {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &ProcessAnalysisUseCase{
		storage:    storage,
		analyzer:   analyzer,
		store:      store,
		scratchDir: scratchDir,
		retrier:    retrier,
		clock:      clock,
	}
}

func (uc *ProcessAnalysisUseCase) Process(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisRecord, error) {
	if strings.TrimSpace(req.DocumentID) == "" || strings.TrimSpace(req.UserID) == "" || req.StorageKey == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "process analysis", errors.New("document id, user id and storage key are required"))
	}

	var record *domain.AnalysisRecord
	run := func(runCtx context.Context) error {
		rec, err := uc.run(runCtx, req)
		if err != nil {
			return err
		}
		record = rec
		return nil
	}

	var err error
	if uc.retrier != nil {
		err = uc.retrier.Do(ctx, "analysis.process", run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (uc *ProcessAnalysisUseCase) run(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisRecord, error) {
	localPath, err := uc.materialize(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := uc.analyzer.Analyze(ctx, localPath, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("analyze document %s: %w", req.DocumentID, err)
	}

	stored := *result
	stored.SourceKey = req.StorageKey
	record, err := uc.store.Save(ctx, req.UserID, req.DocumentID, stored)
	if err != nil {
		return nil, fmt.Errorf("save analysis record: %w", err)
	}
	return record, nil
}

// materialize copies the stored upload into the scratch directory, where the
// sweep reclaims it.
func (uc *ProcessAnalysisUseCase) materialize(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	src, err := uc.storage.Open(ctx, req.StorageKey)
	if err != nil {
		return "", fmt.Errorf("open stored document: %w", err)
	}
	defer src.Close()

	name := fmt.Sprintf("upload_%s_%d%s", req.DocumentID, uc.clock.Now().UnixNano(), strings.ToLower(filepath.Ext(req.StorageKey)))
	dstPath := filepath.Join(uc.scratchDir, name)

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", domain.WrapError(domain.ErrStorage, "create scratch copy", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dstPath)
		return "", domain.WrapError(domain.ErrStorage, "write scratch copy", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dstPath)
		return "", domain.WrapError(domain.ErrStorage, "close scratch copy", err)
	}
	return dstPath, nil
}
