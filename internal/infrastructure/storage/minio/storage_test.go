package minio

import (
	"errors"
	"net"
	"testing"

	"github.com/minio/minio-go/v7"

	"github.com/kirillkom/docverify/internal/core/domain"
)

func TestClassifyTemporaryFailures(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	if err := classify("get object", netErr); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary for network error, got %v", err)
	}

	slow := minio.ErrorResponse{Code: "SlowDown", Message: "reduce your request rate"}
	if err := classify("put object", slow); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary for throttling, got %v", err)
	}
}

func TestClassifyMissingKeyIsStorageError(t *testing.T) {
	missing := minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}
	err := classify("stat object", missing)
	if !domain.IsKind(err, domain.ErrStorage) || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent ErrStorage, got %v", err)
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := contentTypeFor("doc_scan.png"); got != "image/png" {
		t.Fatalf("unexpected content type %s", got)
	}
	if got := contentTypeFor("doc_scan"); got != "application/octet-stream" {
		t.Fatalf("unexpected fallback %s", got)
	}
}
