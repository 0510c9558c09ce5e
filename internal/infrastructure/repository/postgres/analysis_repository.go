package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/docverify/internal/core/domain"
)

const (
	maxInsertAttempts = 16
	recordColumns     = `id, user_id, document_id, status, result, created_at`
)

// AnalysisRepository stores analysis records in the analysis_records table.
// Timestamps are truncated to microseconds to match TIMESTAMPTZ precision.
type AnalysisRepository struct {
	db    *sql.DB
	clock domain.Clock
}

func NewAnalysisRepository(db *sql.DB, clock domain.Clock) *AnalysisRepository {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &AnalysisRepository{db: db, clock: clock}
}

func (r *AnalysisRepository) Save(ctx context.Context, userID, documentID string, result domain.AnalysisResult) (*domain.AnalysisRecord, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "save analysis", errors.New("document id is required"))
	}

	createdAt := r.clock.Now().UTC().Truncate(time.Microsecond)
	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		rec := domain.NewAnalysisRecord(userID, documentID, result, createdAt)
		inserted, err := r.insert(ctx, rec)
		if err != nil {
			return nil, domain.WrapError(domain.ErrStorage, "save analysis", err)
		}
		if inserted {
			return &rec, nil
		}
		createdAt = createdAt.Add(time.Microsecond)
	}
	return nil, domain.WrapError(domain.ErrStorage, "save analysis", fmt.Errorf("no free record id for document %s", documentID))
}

func (r *AnalysisRepository) insert(ctx context.Context, rec domain.AnalysisRecord) (bool, error) {
	payload, err := json.Marshal(rec.Result)
	if err != nil {
		return false, fmt.Errorf("marshal result: %w", err)
	}

	const query = `
INSERT INTO analysis_records (id, user_id, document_id, status, forgery_probability, result, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.DocumentID,
		string(rec.Status),
		rec.Result.Score.ForgeryProbability,
		payload,
		rec.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert analysis record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *AnalysisRepository) GetByDocument(ctx context.Context, documentID string) (*domain.AnalysisRecord, error) {
	query := `SELECT ` + recordColumns + `
FROM analysis_records
WHERE document_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrAnalysisNotFound, "get analysis by document", fmt.Errorf("document %s", documentID))
		}
		return nil, domain.WrapError(domain.ErrStorage, "get analysis by document", err)
	}
	return &rec, nil
}

func (r *AnalysisRepository) ListByUser(ctx context.Context, userID string) ([]domain.AnalysisRecord, error) {
	query := `SELECT ` + recordColumns + `
FROM analysis_records
WHERE user_id = $1
ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "list analyses by user", err)
	}
	defer rows.Close()

	records := make([]domain.AnalysisRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, domain.WrapError(domain.ErrStorage, "scan analysis record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "iterate analysis records", err)
	}
	return records, nil
}

// StatsByUser aggregates in Go so truthiness of text_analysis values follows
// the same rules as the filesystem store.
func (r *AnalysisRepository) StatsByUser(ctx context.Context, userID string) (domain.AnalysisStats, error) {
	records, err := r.ListByUser(ctx, userID)
	if err != nil {
		return domain.AnalysisStats{}, err
	}
	return domain.ComputeStats(records), nil
}

func (r *AnalysisRepository) CleanupOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := r.clock.Now().UTC().Add(-maxAge)
	res, err := r.db.ExecContext(ctx, `DELETE FROM analysis_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, domain.WrapError(domain.ErrStorage, "cleanup analyses", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, domain.WrapError(domain.ErrStorage, "cleanup rows affected", err)
	}
	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.AnalysisRecord, error) {
	var (
		rec     domain.AnalysisRecord
		status  string
		payload []byte
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.DocumentID, &status, &payload, &rec.Timestamp); err != nil {
		return domain.AnalysisRecord{}, err
	}
	if err := json.Unmarshal(payload, &rec.Result); err != nil {
		return domain.AnalysisRecord{}, fmt.Errorf("decode result: %w", err)
	}
	rec.Status = domain.RiskStatus(status)
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}
