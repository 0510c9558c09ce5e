package httpadapter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := newTestRouter(&stagerFake{}, &processorFake{}, &readerFake{records: sampleRecords()}, Options{
		RateLimitRPS:   1,
		RateLimitBurst: 1,
	})

	req1 := httptest.NewRequest(http.MethodGet, "/v1/users/u1/analyses", nil)
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/v1/users/u1/analyses", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}

	health := httptest.NewRecorder()
	handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("healthz must bypass the limiter, got %d", health.Code)
	}
}

func TestRateLimitSharedAcrossRoutes(t *testing.T) {
	handler := newTestRouter(&stagerFake{}, &processorFake{}, &readerFake{records: sampleRecords()}, Options{
		RateLimitRPS:   0.001,
		RateLimitBurst: 1,
	})

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/v1/users/u1/analyses", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", first.Code)
	}

	for _, path := range []string{
		"/v1/users/u1/analyses/stats",
		"/v1/documents/doc-a/analysis",
		"/v1/users/u2/analyses",
	} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
		if res.Code != http.StatusTooManyRequests {
			t.Fatalf("%s expected 429 from the shared bucket, got %d", path, res.Code)
		}
	}
}

func TestBackpressureSharedAcrossRoutes(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	reader := &readerFake{records: sampleRecords(), started: started, release: release}
	handler := newTestRouter(&stagerFake{}, &processorFake{}, reader, Options{
		MaxInFlight:    1,
		AcquireTimeout: 20 * time.Millisecond,
	})

	go func() {
		defer close(done)
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/users/u1/analyses", nil))
	}()
	<-started

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-a/analysis", nil))
	close(release)
	<-done

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while another route holds the only slot, got %d", res.Code)
	}
}

func TestRateLimitMiddlewareCallsRejectHook(t *testing.T) {
	rejected := 0
	base := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := rateLimitMiddleware(1, 1, func() { rejected++ })(base)

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/x", nil))
	}
	if rejected != 2 {
		t.Fatalf("expected 2 rejections, got %d", rejected)
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(1, 20*time.Millisecond, nil)(base)

	go func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/analyses", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodPost, "/v1/analyses", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated backpressure gate, got %d", res2.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(bytes.NewReader(res2.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatalf("decode overload response: %v", err)
	}
	if resp.Error == "" || resp.Kind != "overloaded" {
		t.Fatalf("unexpected overload response: %+v", resp)
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timed out waiting for first request completion")
	}
}

func TestAccessLogRecordsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := NewRouter(Dependencies{
		Submitter: &stagerFake{},
		Stager:    &stagerFake{},
		Processor: &processorFake{},
		Reader:    &readerFake{},
		Logger:    logger,
	}, Options{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing/analysis", nil)
	req.Header.Set(requestIDHeader, "req-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("expected request id echoed, got %q", res.Header().Get(requestIDHeader))
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("decode access log: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "http_request" || entry["status"] != float64(http.StatusNotFound) || entry["request_id"] != "req-123" {
		t.Fatalf("unexpected access log entry: %v", entry)
	}
	if entry["level"] != "WARN" {
		t.Fatalf("expected WARN for 4xx, got %v", entry["level"])
	}
}
