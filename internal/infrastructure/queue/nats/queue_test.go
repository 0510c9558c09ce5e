package nats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docverify/internal/core/domain"
)

func TestRequestRoundTripKeepsFields(t *testing.T) {
	req := domain.AnalysisRequest{
		DocumentID:  "doc42",
		UserID:      "u1",
		StorageKey:  "doc42_scan.png",
		Filename:    "scan.png",
		RequestedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	payload, err := encodeRequest(req)
	if err != nil {
		t.Fatalf("encodeRequest() error = %v", err)
	}
	got, err := decodeRequest(payload)
	if err != nil {
		t.Fatalf("decodeRequest() error = %v", err)
	}
	if got.DocumentID != req.DocumentID || got.StorageKey != req.StorageKey || !got.RequestedAt.Equal(req.RequestedAt) {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestDecodeRequestRejectsMalformedPayloads(t *testing.T) {
	for _, payload := range []string{"doc42", `{"documentId":"doc42"}`} {
		if _, err := decodeRequest([]byte(payload)); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("decodeRequest(%q): expected ErrInvalidInput, got %v", payload, err)
		}
	}
}

func TestClassifyNATSError(t *testing.T) {
	if class := classifyNATSError(fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed)); !class.Retryable {
		t.Fatalf("expected closed connection to be retryable")
	}
	if class := classifyNATSError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("expected cancellation to be ignored, got %+v", class)
	}
	if class := classifyNATSError(nats.ErrBadSubject); class.Retryable {
		t.Fatalf("expected bad subject to be permanent")
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	if opts.ConnectTimeout != 2*time.Second || opts.MaxReconnects != 60 || opts.Logger == nil {
		t.Fatalf("unexpected defaults %+v", opts)
	}
	if opts.Concurrency != 4 {
		t.Fatalf("expected 4 concurrent handlers by default, got %d", opts.Concurrency)
	}
	if opts.RetryOnFailedConnect == nil || !*opts.RetryOnFailedConnect {
		t.Fatalf("expected background connect retry by default")
	}

	off := false
	if got := (Options{RetryOnFailedConnect: &off}).withDefaults(); *got.RetryOnFailedConnect {
		t.Fatalf("explicit false must be kept")
	}
	if n := len(opts.connectOptions()); n != 7 {
		t.Fatalf("expected 7 connect options, got %d", n)
	}
}
