package main

import (
	"testing"
	"time"
)

func TestWriteTimeout(t *testing.T) {
	if got := writeTimeout(0); got != 0 {
		t.Fatalf("expected no write deadline for unbounded processing, got %s", got)
	}
	if got := writeTimeout(5 * time.Minute); got != 5*time.Minute+30*time.Second {
		t.Fatalf("unexpected write timeout %s", got)
	}
}
