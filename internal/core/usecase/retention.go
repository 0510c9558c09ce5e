package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/docverify/internal/core/ports"
)

const (
	DefaultScratchMaxAge = time.Hour
	DefaultRecordMaxAge  = 30 * 24 * time.Hour
)

type RetentionReport struct {
	ScratchRemoved int `json:"scratch_removed"`
	RecordsRemoved int `json:"records_removed"`
}

// RetentionUseCase applies the age-based policies for scratch files and records.
type RetentionUseCase struct {
	sweeper       ports.ScratchSweeper
	store         ports.AnalysisRecordStore
	scratchMaxAge time.Duration
	recordMaxAge  time.Duration
}

func NewRetentionUseCase(
	sweeper ports.ScratchSweeper,
	store ports.AnalysisRecordStore,
	scratchMaxAge, recordMaxAge time.Duration,
) *RetentionUseCase {
	if scratchMaxAge <= 0 {
		scratchMaxAge = DefaultScratchMaxAge
	}
	if recordMaxAge <= 0 {
		recordMaxAge = DefaultRecordMaxAge
	}
	return &RetentionUseCase{
		sweeper:       sweeper,
		store:         store,
		scratchMaxAge: scratchMaxAge,
		recordMaxAge:  recordMaxAge,
	}
}

// RunOnce sweeps scratch files and then cleans up records. A failure in one
// phase does not skip the other.
func (uc *RetentionUseCase) RunOnce(ctx context.Context) (RetentionReport, error) {
	var report RetentionReport
	var errs []error

	removed, err := uc.sweeper.SweepExpired(ctx, uc.scratchMaxAge)
	report.ScratchRemoved = removed
	if err != nil {
		errs = append(errs, fmt.Errorf("sweep scratch: %w", err))
	}

	removed, err = uc.store.CleanupOlderThan(ctx, uc.recordMaxAge)
	report.RecordsRemoved = removed
	if err != nil {
		errs = append(errs, fmt.Errorf("cleanup records: %w", err))
	}

	return report, errors.Join(errs...)
}
