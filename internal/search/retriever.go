package search

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

var tracer = otel.Tracer("github.com/hyperjump/kotae/internal/search")

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever runs vector retrieval over projects and case studies.
type Retriever struct {
	embedder    Embedder
	projects    vector.Searcher[models.Project]
	caseStudies vector.Searcher[models.CaseStudy]
	config      *config.RetrievalConfig
	logger      *zap.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever creates a retriever with the given dependencies.
func NewRetriever(
	embedder Embedder,
	projects vector.Searcher[models.Project],
	caseStudies vector.Searcher[models.CaseStudy],
	cfg *config.RetrievalConfig,
	opts ...RetrieverOption,
) *Retriever {
	r := &Retriever{
		embedder:    embedder,
		projects:    projects,
		caseStudies: caseStudies,
		config:      cfg,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProjectQueries builds the technical and service query strings from extracted entities.
func ProjectQueries(ic models.IntentContext) (technical, service string) {
	technical = strings.TrimSpace(utils.JoinNonEmpty(ic.Technologies, " ") + " " + utils.JoinNonEmpty(ic.Solutions, " "))
	service = utils.JoinNonEmpty(ic.Services, " ")
	return technical, service
}

// RetrieveProjects searches the technical and service channels concurrently,
// aggregates them with the configured weights and applies the project threshold.
// Results are sorted by score descending.
func (r *Retriever) RetrieveProjects(ctx context.Context, ic models.IntentContext) ([]models.ScoredRecord[models.Project], error) {
	ctx, span := tracer.Start(ctx, "search.retrieve_projects")
	defer span.End()

	technical, service := ProjectQueries(ic)
	var techResults, serviceResults []models.VectorSearchResult[models.Project]

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := searchChannel(gctx, r.embedder, r.projects, technical, vector.VectorTechnical, r.config.TopKProjects)
		if err != nil {
			return fmt.Errorf("technical search failed: %w", err)
		}
		techResults = res
		return nil
	})
	g.Go(func() error {
		res, err := searchChannel(gctx, r.embedder, r.projects, service, vector.VectorService, r.config.TopKProjects)
		if err != nil {
			return fmt.Errorf("service search failed: %w", err)
		}
		serviceResults = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	aggregated, err := Aggregate([]models.WeightedSearchResult[models.Project]{
		{Results: techResults, Weight: r.config.ProjectTechWeight},
		{Results: serviceResults, Weight: r.config.ProjectServiceWeight},
	})
	if err != nil {
		return nil, err
	}
	results := filterScored(r.logger, "projects", aggregated, r.config.ProjectThreshold())
	span.SetAttributes(
		attribute.Int("search.technical_hits", len(techResults)),
		attribute.Int("search.service_hits", len(serviceResults)),
		attribute.Int("search.results", len(results)),
	)
	return results, nil
}

// RetrieveCaseStudies embeds query once, searches the case study index and applies
// the case study threshold. Scores are raw certainties.
func (r *Retriever) RetrieveCaseStudies(ctx context.Context, query string) ([]models.ScoredRecord[models.CaseStudy], error) {
	ctx, span := tracer.Start(ctx, "search.retrieve_case_studies")
	defer span.End()

	hits, err := searchChannel(ctx, r.embedder, r.caseStudies, strings.TrimSpace(query), vector.VectorDefault, r.config.TopKCaseStudies)
	if err != nil {
		return nil, fmt.Errorf("case study search failed: %w", err)
	}
	scored := make([]models.ScoredRecord[models.CaseStudy], 0, len(hits))
	for _, h := range hits {
		scored = append(scored, models.ScoredRecord[models.CaseStudy]{ID: h.ID, Record: h.Record, Score: h.CertaintyOrZero()})
	}
	results := filterScored(r.logger, "case_studies", scored, r.config.CaseStudyThreshold())
	span.SetAttributes(attribute.Int("search.results", len(results)))
	return results, nil
}

// searchChannel embeds text and searches one named vector. Empty text yields no
// results without calling the embedder.
func searchChannel[T any](ctx context.Context, e Embedder, s vector.Searcher[T], text, vectorName string, k int) ([]models.VectorSearchResult[T], error) {
	if text == "" {
		return nil, nil
	}
	emb, err := e.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, emb, vectorName, k)
}

func filterScored[T any](logger *zap.Logger, corpus string, records []models.ScoredRecord[T], threshold *float64) []models.ScoredRecord[T] {
	SortByScore(records)
	filtered := FilterByThreshold(records, threshold)
	if len(records) > 0 && len(filtered) == 0 {
		logger.Info("all candidates below score threshold",
			zap.String("corpus", corpus),
			zap.Int("candidates", len(records)),
			zap.Float64("threshold", *threshold),
			zap.Float64("best_score", records[0].Score))
	}
	return filtered
}
