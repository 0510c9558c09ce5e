package httpadapter

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExportByUserWritesWorkbook(t *testing.T) {
	handler := newTestRouter(&stagerFake{}, &processorFake{}, &readerFake{records: sampleRecords()}, Options{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/users/u1/analyses/export.xlsx", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := res.Header().Get("Content-Disposition"); cd != `attachment; filename="analyses_u1.xlsx"` {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	f, err := excelize.OpenReader(bytes.NewReader(res.Body.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetAnalyses)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Record ID" || rows[1][1] != "doc-a" || rows[1][3] != "high_risk" {
		t.Fatalf("unexpected rows: %v", rows)
	}

	summary, err := f.GetRows(sheetSummary)
	if err != nil {
		t.Fatalf("GetRows(summary) error = %v", err)
	}
	if summary[1][0] != "Total" || summary[1][1] != "2" {
		t.Fatalf("unexpected summary: %v", summary)
	}
}

func TestSanitizeHeaderToken(t *testing.T) {
	if got := sanitizeHeaderToken(`a"b/c d`); got != "a_b_c_d" {
		t.Fatalf("unexpected token %q", got)
	}
}
