// Package e2e drives a full conversation through the HTTP API over seeded corpus files.
package e2e

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/llm"
)

const dimensions = 4

// Seed files use the PascalCase keys of the exported corpus.
const projectsSeed = `[
  {"Title": "Retail Loyalty Platform", "TechStack": ["Go", "PostgreSQL"], "SolutionsImplemented": ["Loyalty engine"], "ServicesOffered": ["Backend development"], "Summary": "Points and rewards for a retail chain."},
  {"Title": "Hospital Scheduling", "TechStack": ["Kotlin"], "SolutionsImplemented": ["Shift planner"], "ServicesOffered": ["Mobile development"], "Summary": "Nurse rostering."}
]`

const caseStudiesSeed = `[
  {"Title": "Growing retail engagement", "Industry": "Retail", "Technologies": ["React"], "SolutionsProvided": ["Personalised offers"], "Services": ["Product design"], "DetailedContent": "We helped a retail client lift repeat purchases.", "SourceURL": "https://example.com/retail"},
  {"Title": "Clinic telehealth rollout", "Industry": "Healthcare", "Technologies": ["WebRTC"], "SolutionsProvided": ["Video visits"], "Services": ["Engineering"], "DetailedContent": "A telehealth launch for a clinic network.", "SourceURL": "https://example.com/clinic"}
]`

// WriteSeedFiles writes projects.json and case_studies.json into dir.
func WriteSeedFiles(dir string) error {
	if err := os.WriteFile(filepath.Join(dir, "projects.json"), []byte(projectsSeed), 0600); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "case_studies.json"), []byte(caseStudiesSeed), 0600)
}

// retailAxis places any text mentioning retail on one axis and everything else on another,
// so retrieval order is predictable.
func retailAxis(text string) []float32 {
	if strings.Contains(strings.ToLower(text), "retail") {
		return []float32{1, 0, 0, 0}
	}
	return []float32{0, 1, 0, 0}
}

// NewScriptedModel returns a model that classifies retail case study questions,
// treats anything else as ambiguous, and condenses a history to its last user line.
func NewScriptedModel() *llm.MockModel {
	m := llm.NewMockModel(dimensions)
	m.EmbedFunc = func(ctx context.Context, text string) ([]float32, error) {
		return retailAxis(text), nil
	}
	m.StructuredFunc = func(ctx context.Context, system, user string, schema llm.Schema, out any) error {
		fields := map[string]any{
			"intent":        "ambiguous",
			"justification": "no clear topic",
			"technologies":  []string{},
			"solutions":     []string{},
			"services":      []string{},
			"industry":      []string{},
		}
		if strings.Contains(strings.ToLower(user), "retail") {
			fields["intent"] = "case_study_retrieval"
			fields["justification"] = "asks about a past engagement"
			fields["industry"] = []string{"Retail"}
		}
		return llm.Fill(fields, out)
	}
	m.TextFunc = func(ctx context.Context, system, user string, o llm.GenerateOptions) (string, error) {
		if system == intent.CondensePrompt {
			lines := strings.Split(user, "\n")
			return strings.TrimPrefix(lines[len(lines)-1], "User: "), nil
		}
		return "We lifted repeat purchases for a retail client.", nil
	}
	return m
}
