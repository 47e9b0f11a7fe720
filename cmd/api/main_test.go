package main

import (
	"context"
	"strings"
	"testing"

	"realty/internal/shared"
)

func TestRun_ReturnsBackendErrors(t *testing.T) {
	err := run(context.Background(), shared.Config{DocStore: "bogus"})
	if err == nil || !strings.Contains(err.Error(), "document store") {
		t.Fatalf("expected document store error, got %v", err)
	}
}
