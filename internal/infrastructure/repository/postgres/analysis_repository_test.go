package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/docverify/internal/core/domain"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 4, 1, 10, 0, 0, 123456789, time.UTC)

func newRepoWithMock(t *testing.T) (*AnalysisRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewAnalysisRepository(db, fixedClock{now: testNow}), mock, func() { _ = db.Close() }
}

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "document_id", "status", "result", "created_at"})
}

func resultJSON(t *testing.T, p float64, textAnalysis map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(domain.AnalysisResult{Score: domain.ScoreReport{ForgeryProbability: p, TextAnalysis: textAnalysis}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestSaveInsertsDerivedStatus(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	createdAt := testNow.Truncate(time.Microsecond)
	mock.ExpectExec("INSERT INTO analysis_records").
		WithArgs(domain.RecordID("doc42", createdAt), "u1", "doc42", string(domain.RiskLow), 0.42, sqlmock.AnyArg(), createdAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := repo.Save(context.Background(), "u1", "doc42", domain.AnalysisResult{
		Score:  domain.ScoreReport{ForgeryProbability: 0.42},
		Status: domain.RiskHigh,
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if rec.Status != domain.RiskLow {
		t.Fatalf("expected low_risk, got %s", rec.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveRetriesOnIDConflict(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	first := testNow.Truncate(time.Microsecond)
	second := first.Add(time.Microsecond)
	mock.ExpectExec("INSERT INTO analysis_records").
		WithArgs(domain.RecordID("doc", first), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO analysis_records").
		WithArgs(domain.RecordID("doc", second), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := repo.Save(context.Background(), "u1", "doc", domain.AnalysisResult{})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if rec.ID != domain.RecordID("doc", second) {
		t.Fatalf("unexpected id %s", rec.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveDatabaseErrorIsStorageKind(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO analysis_records").WillReturnError(errors.New("connection refused"))

	_, err := repo.Save(context.Background(), "u1", "doc", domain.AnalysisResult{})
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestGetByDocumentReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM analysis_records").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByDocument(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrAnalysisNotFound) {
		t.Fatalf("expected ErrAnalysisNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByDocumentDecodesResult(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	created := testNow.Truncate(time.Microsecond)
	mock.ExpectQuery("ORDER BY created_at DESC, id DESC").
		WithArgs("doc42").
		WillReturnRows(recordRows().AddRow("doc42_1", "u1", "doc42", "low_risk", resultJSON(t, 0.42, nil), created))

	rec, err := repo.GetByDocument(context.Background(), "doc42")
	if err != nil {
		t.Fatalf("GetByDocument() error = %v", err)
	}
	if rec.Result.Score.ForgeryProbability != 0.42 || rec.Status != domain.RiskLow || !rec.Timestamp.Equal(created) {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestStatsByUserAggregatesListedRecords(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := recordRows().
		AddRow("d1_3", "u1", "d1", "high_risk", resultJSON(t, 0.9, map[string]any{"metadata_issues": true}), testNow).
		AddRow("d2_2", "u1", "d2", "medium_risk", resultJSON(t, 0.55, map[string]any{}), testNow).
		AddRow("d3_1", "u1", "d3", "safe", resultJSON(t, 0.1, map[string]any{}), testNow)
	mock.ExpectQuery("WHERE user_id = \\$1").WithArgs("u1").WillReturnRows(rows)

	stats, err := repo.StatsByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("StatsByUser() error = %v", err)
	}
	if stats.Total != 3 || stats.ByRisk.HighRisk != 1 || stats.ByRisk.MediumRisk != 1 || stats.ByRisk.Safe != 1 {
		t.Fatalf("unexpected risk stats %+v", stats)
	}
	if stats.ByType.ImageManipulation != 1 || stats.ByType.MetadataIssues != 1 || stats.ByType.TextInconsistency != 1 {
		t.Fatalf("unexpected issue stats %+v", stats.ByType)
	}
}

func TestCleanupOlderThanDeletesBeforeCutoff(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM analysis_records WHERE created_at < \\$1").
		WithArgs(testNow.Add(-30 * 24 * time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	removed, err := repo.CleanupOlderThan(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupOlderThan() error = %v", err)
	}
	if removed != 4 {
		t.Fatalf("expected 4 removed, got %d", removed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
