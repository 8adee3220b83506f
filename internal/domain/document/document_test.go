package document

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/sonicweb/internal/domain"
)

func TestNew_Valid(t *testing.T) {
	doc, err := New("Red Iphone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsValidID(doc.ID()) {
		t.Errorf("expected UUID id, got %q", doc.ID())
	}
	if doc.Details() != "Red Iphone" {
		t.Errorf("Details() = %q, want %q", doc.Details(), "Red Iphone")
	}
	if doc.Seq() != 0 {
		t.Errorf("Seq() = %d, want 0 before insert", doc.Seq())
	}
}

func TestNew_FreshIDs(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		doc, err := New("text")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, dup := seen[doc.ID()]; dup {
			t.Fatalf("duplicate id %q after %d documents", doc.ID(), i)
		}
		seen[doc.ID()] = struct{}{}
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		details string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t"},
		{"too large", strings.Repeat("a", MaxDetailsSize+1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.details)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestNewWithID_RejectsNonUUID(t *testing.T) {
	if _, err := NewWithID("not-a-uuid", "text"); err == nil {
		t.Fatal("expected error for non-UUID id")
	}
}

func TestReconstruct(t *testing.T) {
	now := time.Now().UTC()
	doc := Reconstruct("0d9f5c8e-2b7e-4b7a-9d4e-5d6f7a8b9c0d", "stored", 42, now)

	if doc.Seq() != 42 {
		t.Errorf("Seq() = %d, want 42", doc.Seq())
	}
	if !doc.CreatedAt().Equal(now) {
		t.Errorf("CreatedAt() = %v, want %v", doc.CreatedAt(), now)
	}
}

func TestIsValidID(t *testing.T) {
	if IsValidID("nope") {
		t.Error("expected invalid")
	}
	if !IsValidID("0d9f5c8e-2b7e-4b7a-9d4e-5d6f7a8b9c0d") {
		t.Error("expected valid")
	}
}
