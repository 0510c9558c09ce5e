package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AnalysisResult is the composite output of one document analysis.
type AnalysisResult struct {
	Score       ScoreReport   `json:"score"`
	TextContent string        `json:"textContent"`
	Quality     QualityReport `json:"quality"`
	Timestamp   time.Time     `json:"timestamp"`
	Status      RiskStatus    `json:"status"`
	// SourceKey is the object-storage key of the analyzed upload.
	SourceKey string `json:"sourceKey,omitempty"`
}

// AnalysisRecord is the persisted, immutable outcome of one analysis.
type AnalysisRecord struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	DocumentID string         `json:"documentId"`
	Timestamp  time.Time      `json:"timestamp"`
	Result     AnalysisResult `json:"result"`
	Status     RiskStatus     `json:"status"`
}

// NewAnalysisRecord builds a record whose status is derived from the stored
// forgery probability, never taken from the result.
func NewAnalysisRecord(userID, documentID string, result AnalysisResult, createdAt time.Time) AnalysisRecord {
	return AnalysisRecord{
		ID:         RecordID(documentID, createdAt),
		UserID:     userID,
		DocumentID: documentID,
		Timestamp:  createdAt,
		Result:     result,
		Status:     ClassifyRisk(result.Score.ForgeryProbability),
	}
}

func RecordID(documentID string, createdAt time.Time) string {
	return fmt.Sprintf("%s_%d", documentID, createdAt.UnixNano())
}

// RecordIDInstant returns the creation instant encoded in id when id belongs to documentID.
func RecordIDInstant(id, documentID string) (int64, bool) {
	rest, ok := strings.CutPrefix(id, documentID+"_")
	if !ok || rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

type RiskCounts struct {
	HighRisk   int `json:"high_risk"`
	MediumRisk int `json:"medium_risk"`
	LowRisk    int `json:"low_risk"`
	Safe       int `json:"safe"`
}

type IssueCounts struct {
	ImageManipulation int `json:"image_manipulation"`
	TextInconsistency int `json:"text_inconsistency"`
	MetadataIssues    int `json:"metadata_issues"`
}

type AnalysisStats struct {
	Total  int         `json:"total"`
	ByRisk RiskCounts  `json:"byRisk"`
	ByType IssueCounts `json:"byType"`
}

// ComputeStats aggregates risk tiers and issue indicators. Indicators are
// independent of tiers and may overlap.
func ComputeStats(records []AnalysisRecord) AnalysisStats {
	stats := AnalysisStats{Total: len(records)}
	for _, rec := range records {
		switch rec.Status {
		case RiskHigh:
			stats.ByRisk.HighRisk++
		case RiskMedium:
			stats.ByRisk.MediumRisk++
		case RiskLow:
			stats.ByRisk.LowRisk++
		case RiskSafe:
			stats.ByRisk.Safe++
		}

		score := rec.Result.Score
		if score.ForgeryProbability > ImageManipulationThreshold {
			stats.ByType.ImageManipulation++
		}
		if score.HasTextInconsistency() {
			stats.ByType.TextInconsistency++
		}
		if score.HasMetadataIssues() {
			stats.ByType.MetadataIssues++
		}
	}
	return stats
}
