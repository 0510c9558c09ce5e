package httpadapter

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/docverify/internal/core/domain"
)

const (
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sheetAnalyses    = "Analyses"
	sheetSummary     = "Summary"
	defaultSheetName = "Sheet1"
)

var analysisColumns = []any{
	"Record ID", "Document ID", "Timestamp", "Status", "Forgery Probability",
	"Image Format", "Width", "Height", "Resolution Adequate", "Recommendation",
}

// writeAnalysesWorkbook renders one row per record plus a summary sheet with
// the aggregate counts.
func writeAnalysesWorkbook(w io.Writer, userID string, records []domain.AnalysisRecord, stats domain.AnalysisStats) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(defaultSheetName, sheetAnalyses); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetRow(sheetAnalyses, "A1", &analysisColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetRowStyle(sheetAnalyses, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		quality := rec.Result.Quality
		row := []any{
			rec.ID,
			rec.DocumentID,
			rec.Timestamp.UTC().Format(time.RFC3339),
			string(rec.Status),
			rec.Result.Score.ForgeryProbability,
			quality.Format.Type,
			quality.Resolution.Width,
			quality.Resolution.Height,
			quality.Resolution.IsAdequate,
			rec.Result.Score.Recommendation,
		}
		if err := f.SetSheetRow(sheetAnalyses, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(sheetAnalyses, "A", "C", 28); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	summary := [][]any{
		{"User ID", userID},
		{"Total", stats.Total},
		{string(domain.RiskHigh), stats.ByRisk.HighRisk},
		{string(domain.RiskMedium), stats.ByRisk.MediumRisk},
		{string(domain.RiskLow), stats.ByRisk.LowRisk},
		{string(domain.RiskSafe), stats.ByRisk.Safe},
		{"image_manipulation", stats.ByType.ImageManipulation},
		{"text_inconsistency", stats.ByType.TextInconsistency},
		{"metadata_issues", stats.ByType.MetadataIssues},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
