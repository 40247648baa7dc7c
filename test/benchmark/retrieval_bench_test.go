package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/vector"
)

func BenchmarkAggregate(b *testing.B) {
	tech := make([]models.VectorSearchResult[models.Project], 100)
	service := make([]models.VectorSearchResult[models.Project], 100)
	for i := 0; i < 100; i++ {
		c1 := float64(i) / 100
		c2 := float64(100-i) / 100
		tech[i] = models.VectorSearchResult[models.Project]{ID: fmt.Sprintf("p%d", i), Certainty: &c1}
		service[i] = models.VectorSearchResult[models.Project]{ID: fmt.Sprintf("p%d", (i+37)%100), Certainty: &c2}
	}
	sets := []models.WeightedSearchResult[models.Project]{
		{Results: tech, Weight: 0.8},
		{Results: service, Weight: 0.2},
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := search.Aggregate(sets); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemoryIndexSearch(b *testing.B) {
	const dims = 384
	idx, _ := vector.NewMemoryIndex[models.Project](dims)
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		text := fmt.Sprintf("project %d", i)
		_ = idx.Upsert(ctx, fmt.Sprintf("p%d", i), models.Project{Title: text}, map[string][]float32{
			vector.VectorTechnical: llm.HashEmbedding(text, dims),
		})
	}
	query := llm.HashEmbedding("query", dims)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, vector.VectorTechnical, 10)
	}
}
