package vector

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search, hydrated from the record catalog.
	IndexTypeMemory IndexType = "memory"
	// IndexTypePGVector stores records and vectors in PostgreSQL with pgvector.
	IndexTypePGVector IndexType = "pgvector"
)

// Set holds the project and case study indexes of one backend.
type Set struct {
	Projects    Index[models.Project]
	CaseStudies Index[models.CaseStudy]
	closer      func() error
}

// Type returns the backend type of the set.
func (s *Set) Type() string {
	return s.Projects.Type()
}

// Close releases backend resources.
func (s *Set) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// NewSet creates the indexes for the given backend type.
// Supported types: "memory" (default), "pgvector" (requires dsn).
func NewSet(indexType, dsn string, dimensions int) (*Set, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		projects, err := NewMemoryIndex[models.Project](dimensions)
		if err != nil {
			return nil, err
		}
		caseStudies, err := NewMemoryIndex[models.CaseStudy](dimensions)
		if err != nil {
			return nil, err
		}
		return &Set{Projects: projects, CaseStudies: caseStudies}, nil
	case IndexTypePGVector:
		store, err := OpenPGStore(dsn)
		if err != nil {
			return nil, err
		}
		return &Set{Projects: store.Projects(), CaseStudies: store.CaseStudies(), closer: store.Close}, nil
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, pgvector)", indexType)
	}
}
