package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/docverify/internal/core/domain"
)

type sweeperFake struct {
	removed int
	err     error
	maxAge  time.Duration
}

func (f *sweeperFake) SweepExpired(_ context.Context, maxAge time.Duration) (int, error) {
	f.maxAge = maxAge
	return f.removed, f.err
}

type cleanupStoreFake struct {
	recordStoreFake
	removed int
	err     error
	maxAge  time.Duration
}

func (f *cleanupStoreFake) CleanupOlderThan(_ context.Context, maxAge time.Duration) (int, error) {
	f.maxAge = maxAge
	return f.removed, f.err
}

func TestRetentionRunOnceUsesDefaultAges(t *testing.T) {
	sweeper := &sweeperFake{removed: 2}
	store := &cleanupStoreFake{removed: 5}
	uc := NewRetentionUseCase(sweeper, store, 0, 0)

	report, err := uc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if report.ScratchRemoved != 2 || report.RecordsRemoved != 5 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if sweeper.maxAge != time.Hour || store.maxAge != 30*24*time.Hour {
		t.Fatalf("unexpected ages: sweep=%v cleanup=%v", sweeper.maxAge, store.maxAge)
	}
}

func TestRetentionContinuesAfterSweepFailure(t *testing.T) {
	sweeper := &sweeperFake{err: domain.WrapError(domain.ErrStorage, "read scratch", errors.New("permission denied"))}
	store := &cleanupStoreFake{removed: 1}
	uc := NewRetentionUseCase(sweeper, store, time.Minute, time.Hour)

	report, err := uc.RunOnce(context.Background())
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if report.RecordsRemoved != 1 || store.maxAge != time.Hour {
		t.Fatalf("expected cleanup to still run, got %+v maxAge=%v", report, store.maxAge)
	}
}
