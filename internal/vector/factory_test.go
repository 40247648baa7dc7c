package vector

import (
	"context"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func TestNewSet_Memory(t *testing.T) {
	set, err := NewSet("memory", "", 3)
	if err != nil {
		t.Fatalf("NewSet(memory): %v", err)
	}
	defer set.Close()

	ctx := context.Background()
	err = set.Projects.Upsert(ctx, "a", models.Project{Title: "A"}, map[string][]float32{VectorTechnical: {1, 0, 0}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n, _ := set.Projects.Count(ctx); n != 1 {
		t.Errorf("Count=%d, want 1", n)
	}
	if set.Type() != "memory" {
		t.Errorf("Type=%s", set.Type())
	}
}

func TestNewSet_Empty(t *testing.T) {
	set, err := NewSet("", "", 3)
	if err != nil {
		t.Fatalf("NewSet(''): %v", err)
	}
	defer set.Close()
	if n, _ := set.CaseStudies.Count(context.Background()); n != 0 {
		t.Errorf("Count=%d, want 0", n)
	}
}

func TestNewSet_Unknown(t *testing.T) {
	if _, err := NewSet("faiss", "", 3); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestNewSet_InvalidDimensions(t *testing.T) {
	if _, err := NewSet("memory", "", 0); err == nil {
		t.Error("expected error for zero dimensions")
	}
}
