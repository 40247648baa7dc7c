// Package storage persists seed records and their named vectors.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// Catalog is the durable record store used to hydrate in-memory indexes on startup.
type Catalog interface {
	// Writers for the loader
	Projects() vector.Writer[models.Project]
	CaseStudies() vector.Writer[models.CaseStudy]

	// Replay stored records into w
	LoadProjects(ctx context.Context, w vector.Writer[models.Project]) (int, error)
	LoadCaseStudies(ctx context.Context, w vector.Writer[models.CaseStudy]) (int, error)

	// Stats
	CountProjects(ctx context.Context) (int64, error)
	CountCaseStudies(ctx context.Context) (int64, error)

	Close() error
}
