// Package vector provides named-vector indexes over projects and case studies.
package vector

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Named vectors. Projects carry technical and service vectors; case studies carry one default vector.
const (
	VectorTechnical = "technical"
	VectorService   = "service"
	VectorDefault   = "default"
)

// Searcher finds the records nearest to a query vector in one named vector space.
type Searcher[T any] interface {
	Search(ctx context.Context, query []float32, vectorName string, k int) ([]models.VectorSearchResult[T], error)
}

// Writer stores a record with its named vectors, replacing any record with the same ID.
// A missing or empty vector leaves the record unreachable through that name.
type Writer[T any] interface {
	Upsert(ctx context.Context, id string, record T, vectors map[string][]float32) error
}

// Index is a searchable, writable record index.
type Index[T any] interface {
	Searcher[T]
	Writer[T]
	Count(ctx context.Context) (int64, error)
	Type() string
}

// Tee returns a Writer that upserts into every w in order, stopping at the first error.
func Tee[T any](w ...Writer[T]) Writer[T] {
	return teeWriter[T](w)
}

type teeWriter[T any] []Writer[T]

func (t teeWriter[T]) Upsert(ctx context.Context, id string, record T, vectors map[string][]float32) error {
	for _, w := range t {
		if err := w.Upsert(ctx, id, record, vectors); err != nil {
			return err
		}
	}
	return nil
}
