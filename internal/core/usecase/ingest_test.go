package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/docverify/internal/core/domain"
)

type ingestStorageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *ingestStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *ingestStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.savedBody)), nil
}

type ingestQueueFake struct {
	published []domain.AnalysisRequest
	err       error
}

func (f *ingestQueueFake) PublishAnalysisRequested(_ context.Context, req domain.AnalysisRequest) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, req)
	return nil
}

func (f *ingestQueueFake) SubscribeAnalysisRequested(context.Context, func(context.Context, domain.AnalysisRequest) error) error {
	return errors.New("not implemented")
}

func TestSubmitStoresAndPublishes(t *testing.T) {
	storage := &ingestStorageFake{}
	queue := &ingestQueueFake{}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	uc := NewIngestDocumentUseCase(storage, queue, fixedClock{now: now})

	req, err := uc.Submit(context.Background(), "u1", "scan 1.jpg", bytes.NewBufferString("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if req.DocumentID == "" || req.UserID != "u1" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !strings.HasSuffix(storage.savedKey, "_scan_1.jpg") || !strings.HasPrefix(storage.savedKey, req.DocumentID) {
		t.Fatalf("expected sanitized key, got %s", storage.savedKey)
	}
	if storage.savedBody != "jpeg-bytes" {
		t.Fatalf("expected saved body, got %s", storage.savedBody)
	}
	if len(queue.published) != 1 || queue.published[0].DocumentID != req.DocumentID {
		t.Fatalf("expected one published request, got %+v", queue.published)
	}
	if !req.RequestedAt.Equal(now) {
		t.Fatalf("expected clock time, got %v", req.RequestedAt)
	}
}

func TestSubmitRejectsMissingUser(t *testing.T) {
	uc := NewIngestDocumentUseCase(&ingestStorageFake{}, &ingestQueueFake{}, nil)

	_, err := uc.Submit(context.Background(), "  ", "a.png", bytes.NewBufferString("x"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSubmitQueueError(t *testing.T) {
	uc := NewIngestDocumentUseCase(&ingestStorageFake{}, &ingestQueueFake{err: errors.New("queue down")}, nil)

	_, err := uc.Submit(context.Background(), "u1", "a.png", bytes.NewBufferString("x"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "publish analysis request") {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestStageDoesNotPublish(t *testing.T) {
	queue := &ingestQueueFake{}
	uc := NewIngestDocumentUseCase(&ingestStorageFake{}, queue, nil)

	if _, err := uc.Stage(context.Background(), "u1", "a.png", bytes.NewBufferString("x")); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if len(queue.published) != 0 {
		t.Fatalf("expected no publish, got %d", len(queue.published))
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd": "passwd",
		"my scan (1).png":  "my_scan__1_.png",
		"":                 "document.bin",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
