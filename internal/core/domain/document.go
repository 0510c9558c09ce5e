package domain

import (
	"io"
	"time"
)

// DocumentImage references image bytes on disk.
type DocumentImage struct {
	Path      string `json:"path"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int64  `json:"sizeBytes"`
}

// AnalysisRequest is the unit of work handed from ingestion to processing.
type AnalysisRequest struct {
	DocumentID  string    `json:"documentId"`
	UserID      string    `json:"userId"`
	StorageKey  string    `json:"storageKey"`
	Filename    string    `json:"filename"`
	RequestedAt time.Time `json:"requestedAt"`
}

// DocumentDownload streams a stored upload back to its owner. Callers close Body.
type DocumentDownload struct {
	Filename string
	Body     io.ReadCloser
}
