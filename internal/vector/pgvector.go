package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type projectRow struct {
	ID                   string `gorm:"primaryKey"`
	Title                string `gorm:"type:text"`
	TechStack            datatypes.JSON
	SolutionsImplemented datatypes.JSON
	ServicesOffered      datatypes.JSON
	Summary              string           `gorm:"type:text"`
	TechnicalVector      *pgvector.Vector `gorm:"type:vector"`
	ServiceVector        *pgvector.Vector `gorm:"type:vector"`
	UpdatedAt            time.Time        `gorm:"autoUpdateTime"`
}

func (projectRow) TableName() string { return "kotae_projects" }

type caseStudyRow struct {
	ID                string `gorm:"primaryKey"`
	Title             string `gorm:"type:text"`
	Industry          string `gorm:"type:text"`
	Technologies      datatypes.JSON
	SolutionsProvided datatypes.JSON
	Services          datatypes.JSON
	DetailedContent   string           `gorm:"type:text"`
	SourceURL         string           `gorm:"type:text"`
	ContentVector     *pgvector.Vector `gorm:"type:vector"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime"`
}

func (caseStudyRow) TableName() string { return "kotae_case_studies" }

// PGStore keeps projects and case studies in PostgreSQL with the pgvector extension.
type PGStore struct {
	db *gorm.DB
}

// OpenPGStore connects to dsn, enables pgvector and migrates the record tables.
func OpenPGStore(dsn string) (*PGStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	store := NewPGStore(db)
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// NewPGStore wraps an existing connection.
func NewPGStore(db *gorm.DB) *PGStore {
	return &PGStore{db: db}
}

// Migrate creates the vector extension and record tables.
func (s *PGStore) Migrate() error {
	if err := s.db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if err := s.db.AutoMigrate(&projectRow{}, &caseStudyRow{}); err != nil {
		return fmt.Errorf("failed to migrate record tables: %w", err)
	}
	return nil
}

// Projects returns the project index backed by this store.
func (s *PGStore) Projects() *PGProjectIndex {
	return &PGProjectIndex{db: s.db}
}

// CaseStudies returns the case study index backed by this store.
func (s *PGStore) CaseStudies() *PGCaseStudyIndex {
	return &PGCaseStudyIndex{db: s.db}
}

// Close closes the underlying connection pool.
func (s *PGStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PGProjectIndex searches projects by their technical or service vector.
type PGProjectIndex struct {
	db *gorm.DB
}

var projectColumns = map[string]string{
	VectorTechnical: "technical_vector",
	VectorService:   "service_vector",
}

type projectHit struct {
	ID                   string
	Title                string
	TechStack            datatypes.JSON
	SolutionsImplemented datatypes.JSON
	ServicesOffered      datatypes.JSON
	Summary              string
	Certainty            float64
}

// Type returns the index type identifier.
func (p *PGProjectIndex) Type() string { return string(IndexTypePGVector) }

// Search orders by cosine distance on the named vector column.
func (p *PGProjectIndex) Search(ctx context.Context, query []float32, vectorName string, k int) ([]models.VectorSearchResult[models.Project], error) {
	col, ok := projectColumns[vectorName]
	if !ok {
		return nil, fmt.Errorf("unknown project vector: %s", vectorName)
	}
	if k <= 0 {
		return nil, nil
	}
	qv := pgvector.NewVector(query)
	var hits []projectHit
	err := p.db.WithContext(ctx).
		Table(projectRow{}.TableName()).
		Select("id, title, tech_stack, solutions_implemented, services_offered, summary, 1 - ("+col+" <=> ?) / 2 AS certainty", qv).
		Where(col + " IS NOT NULL").
		Order(gorm.Expr(col+" <=> ?", qv)).
		Limit(k).
		Scan(&hits).Error
	if err != nil {
		return nil, fmt.Errorf("project vector search failed: %w", err)
	}
	results := make([]models.VectorSearchResult[models.Project], len(hits))
	for i, h := range hits {
		c := h.Certainty
		results[i] = models.VectorSearchResult[models.Project]{
			ID: h.ID,
			Record: models.Project{
				Title:                h.Title,
				TechStack:            decodeList(h.TechStack),
				SolutionsImplemented: decodeList(h.SolutionsImplemented),
				ServicesOffered:      decodeList(h.ServicesOffered),
				Summary:              h.Summary,
			},
			Certainty: &c,
		}
	}
	return results, nil
}

// Upsert inserts or replaces a project row.
func (p *PGProjectIndex) Upsert(ctx context.Context, id string, record models.Project, vectors map[string][]float32) error {
	row := projectRow{
		ID:                   id,
		Title:                record.Title,
		TechStack:            encodeList(record.TechStack),
		SolutionsImplemented: encodeList(record.SolutionsImplemented),
		ServicesOffered:      encodeList(record.ServicesOffered),
		Summary:              record.Summary,
		TechnicalVector:      toPGVector(vectors[VectorTechnical]),
		ServiceVector:        toPGVector(vectors[VectorService]),
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// Count returns the number of stored projects.
func (p *PGProjectIndex) Count(ctx context.Context) (int64, error) {
	var n int64
	err := p.db.WithContext(ctx).Model(&projectRow{}).Count(&n).Error
	return n, err
}

// PGCaseStudyIndex searches case studies by their content vector.
type PGCaseStudyIndex struct {
	db *gorm.DB
}

type caseStudyHit struct {
	ID                string
	Title             string
	Industry          string
	Technologies      datatypes.JSON
	SolutionsProvided datatypes.JSON
	Services          datatypes.JSON
	DetailedContent   string
	SourceURL         string
	Certainty         float64
}

// Type returns the index type identifier.
func (p *PGCaseStudyIndex) Type() string { return string(IndexTypePGVector) }

// Search orders by cosine distance on the content vector. Only VectorDefault is accepted.
func (p *PGCaseStudyIndex) Search(ctx context.Context, query []float32, vectorName string, k int) ([]models.VectorSearchResult[models.CaseStudy], error) {
	if vectorName != VectorDefault {
		return nil, fmt.Errorf("unknown case study vector: %s", vectorName)
	}
	if k <= 0 {
		return nil, nil
	}
	qv := pgvector.NewVector(query)
	var hits []caseStudyHit
	err := p.db.WithContext(ctx).
		Table(caseStudyRow{}.TableName()).
		Select("id, title, industry, technologies, solutions_provided, services, detailed_content, source_url, 1 - (content_vector <=> ?) / 2 AS certainty", qv).
		Where("content_vector IS NOT NULL").
		Order(gorm.Expr("content_vector <=> ?", qv)).
		Limit(k).
		Scan(&hits).Error
	if err != nil {
		return nil, fmt.Errorf("case study vector search failed: %w", err)
	}
	results := make([]models.VectorSearchResult[models.CaseStudy], len(hits))
	for i, h := range hits {
		c := h.Certainty
		results[i] = models.VectorSearchResult[models.CaseStudy]{
			ID: h.ID,
			Record: models.CaseStudy{
				Title:             h.Title,
				Industry:          h.Industry,
				Technologies:      decodeList(h.Technologies),
				SolutionsProvided: decodeList(h.SolutionsProvided),
				Services:          decodeList(h.Services),
				DetailedContent:   h.DetailedContent,
				SourceURL:         h.SourceURL,
			},
			Certainty: &c,
		}
	}
	return results, nil
}

// Upsert inserts or replaces a case study row.
func (p *PGCaseStudyIndex) Upsert(ctx context.Context, id string, record models.CaseStudy, vectors map[string][]float32) error {
	row := caseStudyRow{
		ID:                id,
		Title:             record.Title,
		Industry:          record.Industry,
		Technologies:      encodeList(record.Technologies),
		SolutionsProvided: encodeList(record.SolutionsProvided),
		Services:          encodeList(record.Services),
		DetailedContent:   record.DetailedContent,
		SourceURL:         record.SourceURL,
		ContentVector:     toPGVector(vectors[VectorDefault]),
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// Count returns the number of stored case studies.
func (p *PGCaseStudyIndex) Count(ctx context.Context) (int64, error) {
	var n int64
	err := p.db.WithContext(ctx).Model(&caseStudyRow{}).Count(&n).Error
	return n, err
}

func toPGVector(v []float32) *pgvector.Vector {
	if len(v) == 0 {
		return nil
	}
	pv := pgvector.NewVector(v)
	return &pv
}

func encodeList(items []string) datatypes.JSON {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return datatypes.JSON(b)
}

func decodeList(raw datatypes.JSON) []string {
	var items []string
	if len(raw) == 0 {
		return items
	}
	_ = json.Unmarshal(raw, &items)
	return items
}
