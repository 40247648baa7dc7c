package llm

import (
	"context"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestEmbeddingCache_ReturnsCopies(t *testing.T) {
	c := NewEmbeddingCache(2)
	stored := []float32{1, 2}
	c.Set("a", stored)
	stored[0] = 9

	got, _ := c.Get("a")
	if got[0] != 1 {
		t.Fatalf("cache aliased the caller's slice: %v", got)
	}
	got[1] = 9
	again, _ := c.Get("a")
	if again[1] != 2 {
		t.Errorf("cache aliased a returned slice: %v", again)
	}
}

func TestCachingModel_Embed(t *testing.T) {
	mock := NewMockModel(4)
	m := NewCachingModel(mock, 10)
	ctx := context.Background()

	first, err := m.Embed(ctx, "react developers")
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Embed(ctx, "react developers")
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 4 || first[0] != second[0] {
		t.Errorf("cached embedding differs: %v vs %v", first, second)
	}
	if n := len(mock.EmbedCalls()); n != 1 {
		t.Errorf("underlying Embed called %d times, want 1", n)
	}
	if _, err := m.GenerateText(ctx, "sys", "user"); err != nil {
		t.Errorf("GenerateText should delegate: %v", err)
	}
}

func TestNewCachingModel_disabled(t *testing.T) {
	mock := NewMockModel(4)
	if m := NewCachingModel(mock, 0); m != Model(mock) {
		t.Error("capacity 0 should return the model unchanged")
	}
}
