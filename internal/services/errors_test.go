package services_test

import (
	"errors"
	"strings"
	"testing"

	"courier/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrUploadAttempt, "library", "transfer", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrUploadAttempt) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"library", "transfer", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "queue", "put", "write failed", nil)
	if !errors.Is(err, services.ErrUploadAttempt) {
		t.Fatalf("expected default marker, got %v", err)
	}
}

func TestWrapMarkerClassification(t *testing.T) {
	err := services.Wrap(services.ErrStorageWrite, "queue", "put", "disk full", nil)
	if !errors.Is(err, services.ErrStorageWrite) {
		t.Fatalf("expected storage marker, got %v", err)
	}
	if errors.Is(err, services.ErrUploadAttempt) {
		t.Fatalf("unexpected upload marker on %v", err)
	}
}
