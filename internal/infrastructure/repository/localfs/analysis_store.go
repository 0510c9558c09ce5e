package localfs

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kirillkom/docverify/internal/core/domain"
)

const (
	recordExt       = ".json"
	maxSaveAttempts = 16
)

// AnalysisStore keeps one JSON file per analysis record in a flat directory.
// Scans take no locks; a scan running next to a Save may or may not see it.
type AnalysisStore struct {
	dir    string
	clock  domain.Clock
	logger *slog.Logger
}

func NewAnalysisStore(dir string, clock domain.Clock, logger *slog.Logger) (*AnalysisStore, error) {
	if dir == "" {
		dir = "./data/analysis"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create records dir: %w", err)
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisStore{dir: dir, clock: clock, logger: logger}, nil
}

func (s *AnalysisStore) Save(ctx context.Context, userID, documentID string, result domain.AnalysisResult) (*domain.AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(documentID) == "" || strings.HasPrefix(documentID, ".") || strings.ContainsAny(documentID, `/\`) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "save analysis", fmt.Errorf("invalid document id %q", documentID))
	}

	createdAt := s.clock.Now()
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		rec := domain.NewAnalysisRecord(userID, documentID, result, createdAt)
		err := s.writeRecord(rec)
		if err == nil {
			return &rec, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, domain.WrapError(domain.ErrStorage, "save analysis", err)
		}
		createdAt = createdAt.Add(time.Nanosecond)
	}
	return nil, domain.WrapError(domain.ErrStorage, "save analysis", fmt.Errorf("no free record id for document %s", documentID))
}

// writeRecord publishes rec with a hard link so readers never see a partial
// file and an existing record is never overwritten.
func (s *AnalysisStore) writeRecord(rec domain.AnalysisRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".record-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Link(tmpPath, s.recordPath(rec.ID)); err != nil {
		return fmt.Errorf("publish record: %w", err)
	}
	return nil
}

func (s *AnalysisStore) GetByDocument(ctx context.Context, documentID string) (*domain.AnalysisRecord, error) {
	entries, err := s.readDir()
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "get analysis by document", err)
	}

	type candidate struct {
		name    string
		instant int64
	}
	var candidates []candidate
	for _, entry := range entries {
		id, ok := recordIDFromName(entry)
		if !ok {
			continue
		}
		if instant, ok := domain.RecordIDInstant(id, documentID); ok {
			candidates = append(candidates, candidate{name: entry.Name(), instant: instant})
		}
	}
	slices.SortFunc(candidates, func(a, b candidate) int { return cmp.Compare(b.instant, a.instant) })

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.readRecord(c.name)
		if err != nil {
			s.logger.Warn("analysis_record_unreadable", "file", c.name, "error", err)
			continue
		}
		return &rec, nil
	}
	return nil, domain.WrapError(domain.ErrAnalysisNotFound, "get analysis by document", fmt.Errorf("document %s", documentID))
}

func (s *AnalysisStore) ListByUser(ctx context.Context, userID string) ([]domain.AnalysisRecord, error) {
	records, err := s.scan(ctx, func(rec domain.AnalysisRecord) bool { return rec.UserID == userID })
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "list analyses by user", err)
	}
	slices.SortFunc(records, func(a, b domain.AnalysisRecord) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return records, nil
}

func (s *AnalysisStore) StatsByUser(ctx context.Context, userID string) (domain.AnalysisStats, error) {
	records, err := s.ListByUser(ctx, userID)
	if err != nil {
		return domain.AnalysisStats{}, err
	}
	return domain.ComputeStats(records), nil
}

// CleanupOlderThan removes records created before now-maxAge. It continues
// past individual failures and reports them joined.
func (s *AnalysisStore) CleanupOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := s.readDir()
	if err != nil {
		return 0, domain.WrapError(domain.ErrStorage, "cleanup analyses", err)
	}

	cutoff := s.clock.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		id, ok := recordIDFromName(entry)
		if !ok {
			continue
		}
		rec, err := s.readRecord(entry.Name())
		if err != nil {
			s.logger.Warn("analysis_record_unreadable", "file", entry.Name(), "error", err)
			continue
		}
		if !ownsRecord(id, rec) {
			continue
		}
		if !rec.Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", entry.Name(), err))
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, domain.WrapError(domain.ErrStorage, "cleanup analyses", errors.Join(errs...))
	}
	return removed, nil
}

func (s *AnalysisStore) scan(ctx context.Context, keep func(domain.AnalysisRecord) bool) ([]domain.AnalysisRecord, error) {
	entries, err := s.readDir()
	if err != nil {
		return nil, err
	}

	records := make([]domain.AnalysisRecord, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, ok := recordIDFromName(entry)
		if !ok {
			continue
		}
		rec, err := s.readRecord(entry.Name())
		if err != nil {
			s.logger.Warn("analysis_record_unreadable", "file", entry.Name(), "error", err)
			continue
		}
		if !ownsRecord(id, rec) {
			continue
		}
		if keep(rec) {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *AnalysisStore) readDir() ([]os.DirEntry, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return entries, err
}

func (s *AnalysisStore) readRecord(name string) (domain.AnalysisRecord, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return domain.AnalysisRecord{}, err
	}
	var rec domain.AnalysisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.AnalysisRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func (s *AnalysisStore) recordPath(id string) string {
	return filepath.Join(s.dir, id+recordExt)
}

// recordIDFromName skips directories, hidden temp files and foreign extensions.
func recordIDFromName(entry os.DirEntry) (string, bool) {
	name := entry.Name()
	if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
		return "", false
	}
	return strings.TrimSuffix(name, recordExt), true
}

// ownsRecord reports whether a decoded file is one of our records rather than
// foreign JSON that happens to live in the directory.
func ownsRecord(id string, rec domain.AnalysisRecord) bool {
	if rec.ID != id {
		return false
	}
	_, ok := domain.RecordIDInstant(rec.ID, rec.DocumentID)
	return ok
}
