package models

// Project is a delivered project. It is searchable by its technical and service vectors.
type Project struct {
	Title                string   `json:"title"`
	TechStack            []string `json:"techStack"`
	SolutionsImplemented []string `json:"solutionsImplemented"`
	ServicesOffered      []string `json:"servicesOffered"`
	Summary              string   `json:"summary"`
}

// CaseStudy is a published engagement write-up, searchable by a single vector over its content.
type CaseStudy struct {
	Title             string   `json:"title"`
	Industry          string   `json:"industry"`
	Technologies      []string `json:"technologies"`
	SolutionsProvided []string `json:"solutionsProvided"`
	Services          []string `json:"services"`
	DetailedContent   string   `json:"detailedContent"`
	SourceURL         string   `json:"sourceUrl"`
}

// VectorSearchResult is one matched record from a single vector search.
// Certainty is nil when the backend did not report a score.
type VectorSearchResult[T any] struct {
	ID        string   `json:"id"`
	Record    T        `json:"record"`
	Certainty *float64 `json:"certainty,omitempty"`
}

// CertaintyOrZero returns the certainty, treating a missing score as zero relevance.
func (r VectorSearchResult[T]) CertaintyOrZero() float64 {
	if r.Certainty == nil {
		return 0
	}
	return *r.Certainty
}

// WeightedSearchResult is one channel's results and the weight it carries in aggregation.
type WeightedSearchResult[T any] struct {
	Results []VectorSearchResult[T]
	Weight  float64
}

// ScoredRecord is an aggregated record with its final relevance score.
type ScoredRecord[T any] struct {
	ID     string  `json:"id"`
	Record T       `json:"record"`
	Score  float64 `json:"score"`
}
