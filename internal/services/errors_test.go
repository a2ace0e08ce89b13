package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"dubber/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "assemble", "concat", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"assemble", "concat", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrProvider, "synthesize", "", "", nil), "provider"},
		{services.Wrap(services.ErrExternalTool, "extract", "", "", nil), "media"},
		{fmt.Errorf("outer: %w", services.Wrap(services.ErrValidation, "", "", "bad", nil)), "validation"},
		{services.Wrap(services.ErrConfiguration, "", "", "", nil), "configuration"},
		{services.Wrap(services.ErrTimeout, "", "", "", nil), "timeout"},
		{services.Wrap(services.ErrBusy, "", "", "", nil), "busy"},
		{errors.New("plain"), "failure"},
	}
	for _, tt := range tests {
		if got := services.Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
