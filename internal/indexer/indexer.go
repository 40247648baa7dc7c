// Package indexer embeds seed projects and case studies and writes them to the record indexes.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

// Record kinds, also used as the UUID namespace seed for record IDs.
const (
	KindProjects    = "projects"
	KindCaseStudies = "case_studies"
)

var (
	projectNamespace   = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kotae:"+KindProjects))
	caseStudyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kotae:"+KindCaseStudies))
)

// Indexer embeds records with the language model and upserts them into writers.
type Indexer struct {
	model       llm.Model
	projects    vector.Writer[models.Project]
	caseStudies vector.Writer[models.CaseStudy]
	logger      *zap.Logger // optional; when set, logs debug events

	mu    sync.Mutex
	files map[string]fileStamp
}

type fileStamp struct {
	mtime int64
	size  int64
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (file loaded, record indexed, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer that writes projects and case studies to the given writers.
func NewIndexer(
	model llm.Model,
	projects vector.Writer[models.Project],
	caseStudies vector.Writer[models.CaseStudy],
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		model:       model,
		projects:    projects,
		caseStudies: caseStudies,
		files:       make(map[string]fileStamp),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// ProjectID returns the stable record ID of a project, derived from its title.
func ProjectID(p models.Project) string {
	return uuid.NewSHA1(projectNamespace, []byte(strings.TrimSpace(p.Title))).String()
}

// CaseStudyID returns the stable record ID of a case study, derived from its title.
func CaseStudyID(c models.CaseStudy) string {
	return uuid.NewSHA1(caseStudyNamespace, []byte(strings.TrimSpace(c.Title))).String()
}

// IndexProject embeds the technical and service texts of p and upserts it.
// Empty texts produce no vector, leaving the project unreachable through that channel.
func (idx *Indexer) IndexProject(ctx context.Context, p models.Project) error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("project has no title")
	}
	technical := normalizeText(utils.JoinNonEmpty(p.TechStack, " ") + " " + utils.JoinNonEmpty(p.SolutionsImplemented, " "))
	service := normalizeText(utils.JoinNonEmpty(p.ServicesOffered, " "))

	vectors := make(map[string][]float32, 2)
	for name, text := range map[string]string{vector.VectorTechnical: technical, vector.VectorService: service} {
		if text == "" {
			continue
		}
		v, err := idx.model.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("failed to embed %s text of %q: %w", name, p.Title, err)
		}
		vectors[name] = v
	}
	id := ProjectID(p)
	if err := idx.projects.Upsert(ctx, id, p, vectors); err != nil {
		return fmt.Errorf("failed to index project %q: %w", p.Title, err)
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer project indexed", zap.String("id", id), zap.String("title", p.Title))
	}
	return nil
}

// IndexCaseStudy embeds the detailed content of c and upserts it.
func (idx *Indexer) IndexCaseStudy(ctx context.Context, c models.CaseStudy) error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("case study has no title")
	}
	vectors := make(map[string][]float32, 1)
	if text := normalizeText(c.DetailedContent); text != "" {
		v, err := idx.model.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("failed to embed content of %q: %w", c.Title, err)
		}
		vectors[vector.VectorDefault] = v
	}
	id := CaseStudyID(c)
	if err := idx.caseStudies.Upsert(ctx, id, c, vectors); err != nil {
		return fmt.Errorf("failed to index case study %q: %w", c.Title, err)
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer case study indexed", zap.String("id", id), zap.String("title", c.Title))
	}
	return nil
}

// IndexProjectsFile loads a JSON array of projects from path and indexes each one.
// Returns the number of projects indexed; zero when the file is unchanged since the last call.
func (idx *Indexer) IndexProjectsFile(ctx context.Context, path string) (int, error) {
	var items []models.Project
	skip, err := idx.readFile(path, &items)
	if err != nil || skip {
		return 0, err
	}
	for i, p := range items {
		if err := idx.IndexProject(ctx, p); err != nil {
			idx.Forget(path)
			return i, err
		}
	}
	idx.logLoaded(path, KindProjects, len(items))
	return len(items), nil
}

// IndexCaseStudiesFile loads a JSON array of case studies from path and indexes each one.
// Returns the number of case studies indexed; zero when the file is unchanged since the last call.
func (idx *Indexer) IndexCaseStudiesFile(ctx context.Context, path string) (int, error) {
	var items []models.CaseStudy
	skip, err := idx.readFile(path, &items)
	if err != nil || skip {
		return 0, err
	}
	for i, c := range items {
		if err := idx.IndexCaseStudy(ctx, c); err != nil {
			idx.Forget(path)
			return i, err
		}
	}
	idx.logLoaded(path, KindCaseStudies, len(items))
	return len(items), nil
}

// IndexFile indexes path as projects or case studies according to kind.
func (idx *Indexer) IndexFile(ctx context.Context, path, kind string) (int, error) {
	switch kind {
	case KindProjects:
		return idx.IndexProjectsFile(ctx, path)
	case KindCaseStudies:
		return idx.IndexCaseStudiesFile(ctx, path)
	default:
		return 0, fmt.Errorf("unknown record kind: %s", kind)
	}
}

// Forget clears the remembered stamp of path so the next load re-reads it.
func (idx *Indexer) Forget(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	idx.mu.Lock()
	delete(idx.files, abs)
	idx.mu.Unlock()
}

// readFile decodes the JSON file at path into out. Seed keys are matched
// case-insensitively, so both "TechStack" and "techStack" decode.
// skip is true when the file has the same mtime and size as the last successful read.
func (idx *Indexer) readFile(path string, out any) (skip bool, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("not a regular file: %s", absPath)
	}
	stamp := fileStamp{mtime: info.ModTime().UnixNano(), size: info.Size()}
	idx.mu.Lock()
	prev, seen := idx.files[absPath]
	idx.mu.Unlock()
	if seen && prev == stamp {
		if idx.logger != nil {
			idx.logger.Debug("indexer skipping unchanged file", zap.String("path", absPath))
		}
		return true, nil
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return false, fmt.Errorf("read file: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("parse %s: %w", absPath, err)
	}
	idx.mu.Lock()
	idx.files[absPath] = stamp
	idx.mu.Unlock()
	return false, nil
}

func (idx *Indexer) logLoaded(path, kind string, n int) {
	if idx.logger != nil {
		idx.logger.Info("indexer file loaded", zap.String("path", path), zap.String("kind", kind), zap.Int("records", n))
	}
}
