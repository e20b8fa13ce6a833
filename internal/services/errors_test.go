package services_test

import (
	"errors"
	"strings"
	"testing"

	"plexadmin/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrNotFound, "plex", "fetch item", "/library/metadata/1", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"plex", "fetch item", "/library/metadata/1"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestMarkerClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", services.Wrap(services.ErrNotFound, "plex", "get", "", nil), services.ErrNotFound},
		{"unauthorized", services.Wrap(services.ErrUnauthorized, "plex", "get", "", nil), services.ErrUnauthorized},
		{"validation", services.Wrap(services.ErrValidation, "selection", "", "bad user", nil), services.ErrValidation},
		{"plain", errors.New("io"), services.ErrTransient},
		{"nil", nil, services.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Marker(tt.err); got != tt.want {
				t.Fatalf("Marker() = %v, want %v", got, tt.want)
			}
		})
	}
}
