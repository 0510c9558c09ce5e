package httpadapter

import (
	"context"
	"testing"
)

func TestEmbeddedOpenAPIIsValid(t *testing.T) {
	doc, err := LoadOpenAPI(context.Background())
	if err != nil {
		t.Fatalf("LoadOpenAPI() error = %v", err)
	}
	for _, path := range []string{
		"/v1/documents",
		"/v1/analyses",
		"/v1/documents/{documentID}/analysis",
		"/v1/documents/{documentID}/download",
		"/v1/users/{userID}/analyses",
		"/v1/users/{userID}/analyses/stats",
		"/v1/users/{userID}/analyses/export.xlsx",
	} {
		if doc.Paths.Value(path) == nil {
			t.Fatalf("expected path %s in openapi document", path)
		}
	}
}
